// Package fppi implements the Fixed-Priority-with-Inheritance scheduling
// policy: period-monotonic base priority, a priority-inheritance protocol
// on mutex contention, and a sorted ready queue with FIFO tie-break among
// equal-priority tasks.
//
// An FPPI Scheduler is not internally synchronized; the caller serializes
// all calls the same way the teacher's Engine serializes access to its own
// maps with an external mutex.
package fppi

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/BDUG/l4rerust/internal/schedlog"
	"github.com/BDUG/l4rerust/scheduler/registry"
	"github.com/BDUG/l4rerust/scheduler/schederr"
	"github.com/BDUG/l4rerust/scheduler/schedtype"
)

const opName = "autosar"

// Priority is period-monotonic: smaller values mean higher priority.
type Priority uint64

type task struct {
	id              schedtype.TaskID
	period          Priority
	basePriority    Priority
	currentPriority Priority
	handle          schedtype.TaskHandle
	ownedMutexes    map[schedtype.MutexID]struct{}
}

type mutexState struct {
	owner   schedtype.TaskID
	hasOwner bool
	waiters []schedtype.TaskID
}

// Scheduler is one FPPI scheduler instance, scoped to a single logical CPU.
type Scheduler struct {
	tasks    *registry.Registry[schedtype.TaskID, *task]
	mutexes  *registry.Registry[schedtype.MutexID, *mutexState]
	ready    []schedtype.TaskID
	current  schedtype.TaskID
	hasCur   bool
	esi      schedtype.ExecutionSubstrate
	resource schedtype.SchedulerResource
	obs      Observer
	log      zerolog.Logger
}

// Observer receives engine trace events; nil-safe via the no-op default.
// scheduler/metrics implements this interface to record Prometheus
// instrumentation without the core depending on Prometheus directly.
type Observer interface {
	OnDispatch(id schedtype.TaskID)
	OnPreempt(id schedtype.TaskID)
	OnInheritanceBoost(boosted schedtype.TaskID, from Priority)
}

type nopObserver struct{}

func (nopObserver) OnDispatch(schedtype.TaskID)                  {}
func (nopObserver) OnPreempt(schedtype.TaskID)                   {}
func (nopObserver) OnInheritanceBoost(schedtype.TaskID, Priority) {}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithObserver installs a trace/metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.obs = o }
}

// WithLogger installs a structured logger; defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = schedlog.Engine(l, opName) }
}

// New constructs an empty FPPI scheduler bound to esi: every dispatch calls
// esi.Run(resource, handle) exactly once, matching the Policy Selector's
// create(policy, esi, scheduler_resource) contract (§4.1/§6).
func New(esi schedtype.ExecutionSubstrate, resource schedtype.SchedulerResource, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    registry.New[schedtype.TaskID, *task](),
		mutexes:  registry.New[schedtype.MutexID, *mutexState](),
		esi:      esi,
		resource: resource,
		obs:      nopObserver{},
		log:      schedlog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the policy name, matching the Policy Selector contract.
func (s *Scheduler) Name() string { return "autosar" }

func (s *Scheduler) mustTask(id schedtype.TaskID) *task {
	t, ok := s.tasks.Get(id)
	if !ok {
		schederr.Panicf(opName, uint64(id), 0, "unknown task")
	}
	return t
}

// AddTask registers a new task with the given period (its period-monotonic
// base priority) and substrate handle. Panics if id is already registered.
func (s *Scheduler) AddTask(id schedtype.TaskID, period Priority, handle schedtype.TaskHandle) {
	if s.tasks.Has(id) {
		schederr.Panicf(opName, uint64(id), 0, "duplicate task id")
	}
	s.tasks.Set(id, &task{
		id:              id,
		period:          period,
		basePriority:    period,
		currentPriority: period,
		handle:          handle,
		ownedMutexes:    make(map[schedtype.MutexID]struct{}),
	})
}

// insertReadySorted inserts id into the ready queue in ascending priority
// order. Equal-priority arrivals are inserted after every existing
// equal-priority entry (a strict upper-bound search), so the ready queue is
// true FIFO among ties: the task that became ready first stays at the head
// of its priority band. This is a deliberate choice where the reference
// Rust implementation's binary_search_by_key/unwrap_or_else pattern leaves
// tie order unspecified; the spec's own tie-break text calls for FIFO by
// admission order, which only an upper-bound insertion guarantees.
func (s *Scheduler) insertReadySorted(id schedtype.TaskID, prio Priority) {
	idx := sort.Search(len(s.ready), func(i int) bool {
		return s.priorityOf(s.ready[i]) > prio
	})
	s.ready = append(s.ready, 0)
	copy(s.ready[idx+1:], s.ready[idx:])
	s.ready[idx] = id
}

func (s *Scheduler) priorityOf(id schedtype.TaskID) Priority {
	t, ok := s.tasks.Get(id)
	if !ok {
		return 0
	}
	return t.currentPriority
}

func (s *Scheduler) removeReady(id schedtype.TaskID) bool {
	for i, rid := range s.ready {
		if rid == id {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) inReady(id schedtype.TaskID) bool {
	for _, rid := range s.ready {
		if rid == id {
			return true
		}
	}
	return false
}

// preempt demotes the current task back into the ready queue (if any is
// current) and dispatches whichever ready task now has the best priority.
// It does not compare priorities itself; callers decide that a preemption
// is due.
func (s *Scheduler) preempt() {
	if s.hasCur {
		s.insertReadySorted(s.current, s.priorityOf(s.current))
		s.obs.OnPreempt(s.current)
		s.hasCur = false
	}
	s.runNext()
}

// runNext pops the highest-priority ready task (the head of the sorted
// slice), makes it current, and issues exactly one ESI.run call to hand it
// the processor, if the queue is non-empty.
func (s *Scheduler) runNext() {
	if len(s.ready) == 0 {
		return
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	s.current = id
	s.hasCur = true
	s.obs.OnDispatch(id)
	t := s.mustTask(id)
	s.esi.Run(s.resource, t.handle)
}

// MakeReady transitions task id to the ready state, preempting the current
// task if id now has strictly better (numerically smaller) priority.
func (s *Scheduler) MakeReady(id schedtype.TaskID) {
	t := s.mustTask(id)
	if s.hasCur && s.current == id {
		return
	}
	if s.inReady(id) {
		return
	}
	if !s.hasCur {
		s.insertReadySorted(id, t.currentPriority)
		s.runNext()
		return
	}
	if t.currentPriority < s.priorityOf(s.current) {
		s.insertReadySorted(s.current, s.priorityOf(s.current))
		s.obs.OnPreempt(s.current)
		s.hasCur = false
		s.insertReadySorted(id, t.currentPriority)
		s.runNext()
		return
	}
	s.insertReadySorted(id, t.currentPriority)
}

// CurrentTask returns the handle of the currently dispatched task, and
// false if no task is current.
func (s *Scheduler) CurrentTask() (schedtype.TaskHandle, bool) {
	if !s.hasCur {
		return schedtype.NoTask, false
	}
	t := s.mustTask(s.current)
	return t.handle, true
}

// TaskPriority returns task id's current (possibly inheritance-boosted)
// priority. Panics if id is unknown.
func (s *Scheduler) TaskPriority(id schedtype.TaskID) Priority {
	return s.mustTask(id).currentPriority
}

func (s *Scheduler) findWaiterMutex(id schedtype.TaskID) (schedtype.MutexID, *mutexState, bool) {
	for _, mid := range s.mutexes.IDs() {
		m, _ := s.mutexes.Get(mid)
		for _, w := range m.waiters {
			if w == id {
				return mid, m, true
			}
		}
	}
	return 0, nil, false
}

func (s *Scheduler) insertWaiterSorted(m *mutexState, id schedtype.TaskID) {
	prio := s.priorityOf(id)
	idx := sort.Search(len(m.waiters), func(i int) bool {
		return s.priorityOf(m.waiters[i]) > prio
	})
	m.waiters = append(m.waiters, 0)
	copy(m.waiters[idx+1:], m.waiters[idx:])
	m.waiters[idx] = id
}

// repositionOrPreempt is called after a task's currentPriority changes. If
// the task is current and no longer has the best priority, it is preempted;
// if it sits in the ready queue, it is repositioned; if it sits in a
// mutex's waiter list, it is repositioned there instead.
func (s *Scheduler) repositionOrPreempt(id schedtype.TaskID) {
	if s.hasCur && s.current == id {
		if len(s.ready) > 0 && s.priorityOf(s.ready[0]) < s.priorityOf(id) {
			s.preempt()
		}
		return
	}
	if s.removeReady(id) {
		s.insertReadySorted(id, s.priorityOf(id))
		if s.hasCur && s.priorityOf(id) < s.priorityOf(s.current) {
			s.insertReadySorted(s.current, s.priorityOf(s.current))
			s.obs.OnPreempt(s.current)
			s.hasCur = false
			s.runNext()
		}
		return
	}
	if _, m, ok := s.findWaiterMutex(id); ok {
		for i, w := range m.waiters {
			if w == id {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				break
			}
		}
		s.insertWaiterSorted(m, id)
	}
}

// propagateInheritance boosts ownerID to at most prio and walks the
// waits-for chain transitively: if ownerID is itself blocked waiting on
// another mutex, that mutex's owner is boosted too, and so on. The walk only
// continues past a task whose priority it just lowered to prio, so even a
// cycle in the waits-for graph (a deadlock, which is not diagnosed) stops
// when it reaches an already-boosted task: at most len(tasks) steps.
func (s *Scheduler) propagateInheritance(ownerID schedtype.TaskID, prio Priority) {
	for {
		owner := s.mustTask(ownerID)
		if owner.currentPriority <= prio {
			return
		}
		from := owner.currentPriority
		owner.currentPriority = prio
		s.obs.OnInheritanceBoost(ownerID, from)
		s.repositionOrPreposition(ownerID)

		mid, m, waiting := s.findWaiterMutex(ownerID)
		if !waiting {
			return
		}
		_ = mid
		ownerID = m.owner
		if !m.hasOwner {
			return
		}
	}
}

// repositionOrPreposition is a small alias kept separate from
// repositionOrPreempt's external call sites so propagateInheritance reads
// as "move this task to where its new priority belongs" without implying a
// fresh dispatch decision beyond what repositionOrPreempt already does.
func (s *Scheduler) repositionOrPreposition(id schedtype.TaskID) {
	s.repositionOrPreempt(id)
}

// LockMutex attempts to acquire mutex mid on behalf of task id. Unknown
// mutexes are created lazily, unowned. If the mutex is free, id becomes the
// owner. If id already owns it, that is a re-entrant-lock contract
// violation. Otherwise id blocks: it is removed from wherever it currently
// sits (ready queue or current), inserted into the mutex's waiter list, and
// the owner's priority is boosted (transitively) to at least id's priority.
func (s *Scheduler) LockMutex(id schedtype.TaskID, mid schedtype.MutexID) {
	t := s.mustTask(id)

	m, ok := s.mutexes.Get(mid)
	if !ok {
		m = &mutexState{}
		s.mutexes.Set(mid, m)
	}

	if !m.hasOwner {
		m.owner = id
		m.hasOwner = true
		t.ownedMutexes[mid] = struct{}{}
		return
	}
	if m.owner == id {
		schederr.Panicf(opName, uint64(id), uint64(mid), "re-entrant lock by current owner")
	}

	if s.hasCur && s.current == id {
		s.hasCur = false
	} else {
		s.removeReady(id)
	}
	s.insertWaiterSorted(m, id)

	s.propagateInheritance(m.owner, t.currentPriority)

	// Only dispatch a waiting task if nothing is current: id blocking here
	// only vacates the CPU if id itself was current (handled above by
	// clearing hasCur); if id was merely sitting in the ready queue, the
	// actually-running task must keep running undisturbed.
	if !s.hasCur {
		s.runNext()
	}
}

// UnlockMutex releases mutex mid, owned by task id. Unlike every other
// operation, an unknown mutex here is NOT a contract violation: it is a
// silent no-op (logged at debug), matching §7's asymmetric taxonomy. An
// unknown task id is still a contract violation, checked first.
func (s *Scheduler) UnlockMutex(id schedtype.TaskID, mid schedtype.MutexID) {
	_ = s.mustTask(id)

	m, ok := s.mutexes.Get(mid)
	if !ok {
		s.log.Debug().Uint64("mutex", uint64(mid)).Msg("unlock of unknown mutex ignored")
		return
	}
	if !m.hasOwner || m.owner != id {
		s.log.Debug().Uint64("mutex", uint64(mid)).Uint64("task", uint64(id)).Msg("unlock by non-owner ignored")
		return
	}

	owner := s.mustTask(id)
	delete(owner.ownedMutexes, mid)
	s.recomputePriority(owner)

	if len(m.waiters) == 0 {
		m.hasOwner = false
		m.owner = 0
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.owner = next
	m.hasOwner = true
	nextTask := s.mustTask(next)
	nextTask.ownedMutexes[mid] = struct{}{}

	s.MakeReady(next)
}

// recomputePriority restores owner's currentPriority to the minimum of its
// base priority and the best (smallest) priority among the head waiters of
// every mutex it still owns, then repositions/preempts accordingly.
func (s *Scheduler) recomputePriority(owner *task) {
	best := owner.basePriority
	for mid := range owner.ownedMutexes {
		m, ok := s.mutexes.Get(mid)
		if !ok || len(m.waiters) == 0 {
			continue
		}
		if p := s.priorityOf(m.waiters[0]); p < best {
			best = p
		}
	}
	if best == owner.currentPriority {
		return
	}
	owner.currentPriority = best
	s.repositionOrPreempt(owner.id)
}
