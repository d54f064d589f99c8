// Package wf implements the Weighted-Fair scheduling policy: a CFS-inspired
// virtual-runtime accumulator, weight-proportional time slices, and a
// ready queue ordered by descending vruntime (so the minimum-vruntime task
// sits at the tail and is the next to dispatch).
//
// A WF Scheduler is not internally synchronized; the caller serializes all
// calls, exactly as fppi.Scheduler does.
package wf

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/BDUG/l4rerust/internal/schedlog"
	"github.com/BDUG/l4rerust/scheduler/registry"
	"github.com/BDUG/l4rerust/scheduler/schederr"
	"github.com/BDUG/l4rerust/scheduler/schedtype"
)

const opName = "linux_like"

// BaseSlice is the time-slice unit (in scheduler ticks) given to a task of
// reference weight 1024; other weights scale proportionally.
const BaseSlice uint64 = 5

type task struct {
	id        schedtype.TaskID
	weight    uint64
	vruntime  uint64
	runtime   uint64
	handle    schedtype.TaskHandle
	slice     uint64
	remaining uint64
}

// Scheduler is one WF scheduler instance, scoped to a single logical CPU.
type Scheduler struct {
	tasks    *registry.Registry[schedtype.TaskID, *task]
	ready    []schedtype.TaskID
	current  schedtype.TaskID
	hasCur   bool
	esi      schedtype.ExecutionSubstrate
	resource schedtype.SchedulerResource
	obs      Observer
	log      zerolog.Logger
}

// Observer receives engine trace events; nil-safe via the no-op default.
type Observer interface {
	OnDispatch(id schedtype.TaskID)
	OnPreempt(id schedtype.TaskID)
}

type nopObserver struct{}

func (nopObserver) OnDispatch(schedtype.TaskID) {}
func (nopObserver) OnPreempt(schedtype.TaskID)  {}

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

// New constructs an empty WF scheduler bound to esi: every dispatch calls
// esi.Run(resource, handle) exactly once, matching the Policy Selector's
// create(policy, esi, scheduler_resource) contract (§4.1/§6).
func New(esi schedtype.ExecutionSubstrate, resource schedtype.SchedulerResource, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    registry.New[schedtype.TaskID, *task](),
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
func (s *Scheduler) Name() string { return "linux_like" }

func (s *Scheduler) mustTask(id schedtype.TaskID) *task {
	t, ok := s.tasks.Get(id)
	if !ok {
		schederr.Panicf(opName, uint64(id), 0, "unknown task")
	}
	return t
}

// AddTask registers a new task with the given weight (1024 is the
// reference/"nice 0" weight) and substrate handle. Panics if id is already
// registered or weight is zero.
func (s *Scheduler) AddTask(id schedtype.TaskID, weight uint64, handle schedtype.TaskHandle) {
	if s.tasks.Has(id) {
		schederr.Panicf(opName, uint64(id), 0, "duplicate task id")
	}
	if weight == 0 {
		schederr.Panicf(opName, uint64(id), 0, "weight must be non-zero")
	}
	slice := BaseSlice * weight / 1024
	if slice == 0 {
		slice = 1
	}
	s.tasks.Set(id, &task{
		id:        id,
		weight:    weight,
		handle:    handle,
		slice:     slice,
		remaining: slice,
	})
}

// insertReadySorted inserts id keeping the ready queue sorted by descending
// vruntime, so the tail (last element) always holds the minimum-vruntime
// (most deserving) task and can be popped in O(1).
func (s *Scheduler) insertReadySorted(id schedtype.TaskID, vr uint64) {
	idx := sort.Search(len(s.ready), func(i int) bool {
		return s.vruntimeOf(s.ready[i]) <= vr
	})
	s.ready = append(s.ready, 0)
	copy(s.ready[idx+1:], s.ready[idx:])
	s.ready[idx] = id
}

func (s *Scheduler) vruntimeOf(id schedtype.TaskID) uint64 {
	t, ok := s.tasks.Get(id)
	if !ok {
		return 0
	}
	return t.vruntime
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

// preempt demotes the current task back into the ready queue (resetting its
// slice for its next turn) and dispatches the new minimum-vruntime task.
func (s *Scheduler) preempt() {
	if s.hasCur {
		cur := s.mustTask(s.current)
		cur.remaining = cur.slice
		s.insertReadySorted(s.current, cur.vruntime)
		s.obs.OnPreempt(s.current)
		s.hasCur = false
	}
	s.runNext()
}

// runNext pops the minimum-vruntime ready task (the tail of the descending-
// sorted slice), makes it current, and issues exactly one ESI.run call to
// hand it the processor, if the queue is non-empty.
func (s *Scheduler) runNext() {
	if len(s.ready) == 0 {
		return
	}
	id := s.ready[len(s.ready)-1]
	s.ready = s.ready[:len(s.ready)-1]
	s.current = id
	s.hasCur = true
	s.obs.OnDispatch(id)
	t := s.mustTask(id)
	s.esi.Run(s.resource, t.handle)
}

// MakeReady transitions task id to the ready state. If no task is current,
// id is dispatched immediately. If id's vruntime is strictly less than the
// current task's, id preempts it outright — a newly-ready task that has
// accrued less virtual runtime than whatever is running is, by definition,
// more deserving of the processor right now. Otherwise id simply joins the
// ready queue and waits for Tick-driven preemption or slice exhaustion.
func (s *Scheduler) MakeReady(id schedtype.TaskID) {
	t := s.mustTask(id)
	if s.hasCur && s.current == id {
		return
	}
	if s.inReady(id) {
		return
	}
	if s.hasCur && t.vruntime < s.vruntimeOf(s.current) {
		s.insertReadySorted(id, t.vruntime)
		s.preempt()
		return
	}
	s.insertReadySorted(id, t.vruntime)
	if !s.hasCur {
		s.runNext()
	}
}

// Tick advances the current task by one scheduling tick: its runtime and
// vruntime accumulate (vruntime by max(1, 1024/weight), giving
// higher-weight tasks a slower-growing vruntime and therefore more
// dispatches), and its remaining slice is decremented. When the slice is
// exhausted the task is preempted, even if it would still be the
// minimum-vruntime candidate — the slice bounds how long one task can run
// before the queue is re-examined.
func (s *Scheduler) Tick() {
	if !s.hasCur {
		s.runNext()
		return
	}
	cur := s.mustTask(s.current)
	cur.runtime++
	delta := uint64(1024) / cur.weight
	if delta == 0 {
		delta = 1
	}
	cur.vruntime += delta
	if cur.remaining > 0 {
		cur.remaining--
	}
	if cur.remaining == 0 {
		s.preempt()
	}
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

// TaskRuntime returns the cumulative number of ticks task id has run.
// Panics if id is unknown.
func (s *Scheduler) TaskRuntime(id schedtype.TaskID) uint64 {
	return s.mustTask(id).runtime
}
