package fppi_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDUG/l4rerust/scheduler/fppi"
	"github.com/BDUG/l4rerust/scheduler/schederr"
	"github.com/BDUG/l4rerust/scheduler/schedtype"
)

func handle(n int) schedtype.TaskHandle {
	return schedtype.NewTaskHandle(n)
}

type nopSubstrate struct{}

func (nopSubstrate) Run(resource schedtype.SchedulerResource, task schedtype.TaskHandle) schedtype.Status {
	return "ok"
}

func newScheduler(opts ...fppi.Option) *fppi.Scheduler {
	return fppi.New(nopSubstrate{}, nil, opts...)
}

// Seed scenario 1: period-based preemption. A lower-period (higher
// priority) task becoming ready must preempt a higher-period task already
// running.
func TestPeriodBasedPreemption(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 10, handle(1))
	s.AddTask(2, 5, handle(2))

	s.MakeReady(1)
	cur, ok := s.CurrentTask()
	require.True(t, ok)
	assert.Equal(t, handle(1), cur)

	s.MakeReady(2)
	cur, ok = s.CurrentTask()
	require.True(t, ok)
	assert.Equal(t, handle(2), cur, "lower period must preempt higher period task")
}

// Seed scenario 2: priority inheritance. A low-priority mutex owner
// blocking a higher-priority waiter must be boosted to the waiter's
// priority for the duration of the hold.
func TestPriorityInheritance(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 20, handle(1)) // low priority owner
	s.AddTask(2, 5, handle(2))  // high priority waiter

	s.MakeReady(1)
	s.LockMutex(1, 100)

	s.MakeReady(2)
	// task 2 should now block on the mutex owned by task 1, boosting 1.
	s.LockMutex(2, 100)

	assert.Equal(t, fppi.Priority(5), s.TaskPriority(1), "owner must inherit waiter's priority")

	cur, ok := s.CurrentTask()
	require.True(t, ok)
	assert.Equal(t, handle(1), cur, "boosted owner keeps running over lower-priority tasks")

	s.UnlockMutex(1, 100)
	assert.Equal(t, fppi.Priority(20), s.TaskPriority(1), "priority reverts to base once no longer inheriting")

	cur, ok = s.CurrentTask()
	require.True(t, ok)
	assert.Equal(t, handle(2), cur, "waiter acquires mutex and becomes current")
}

// Transitive inheritance: task 3 waits on task 2, which waits on task 1.
// Task 1 must be boosted all the way up to task 3's priority.
func TestTransitiveInheritance(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 30, handle(1))
	s.AddTask(2, 20, handle(2))
	s.AddTask(3, 5, handle(3))

	s.MakeReady(1)
	s.LockMutex(1, 100) // task1 owns mutex 100

	s.MakeReady(2)
	s.LockMutex(2, 100) // task2 blocks on 100, boosting task1 to 20
	assert.Equal(t, fppi.Priority(20), s.TaskPriority(1))

	s.LockMutex(2, 200) // task2 now owns mutex 200

	s.MakeReady(3)
	s.LockMutex(3, 200) // task3 blocks on 200 owned by task2
	assert.Equal(t, fppi.Priority(5), s.TaskPriority(2), "task2 boosted by task3")
	assert.Equal(t, fppi.Priority(5), s.TaskPriority(1), "boost propagates transitively to task1")
}

// Seed scenario 3 (tie-break): among equal-priority ready tasks, the one
// that became ready first is dispatched first.
func TestFIFOTieBreak(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 10, handle(1))
	s.AddTask(2, 10, handle(2))
	s.AddTask(3, 10, handle(3))

	s.MakeReady(1)
	s.MakeReady(2)
	s.MakeReady(3)

	cur, _ := s.CurrentTask()
	assert.Equal(t, handle(1), cur)
}

func TestAddTaskDuplicatePanics(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 10, handle(1))
	assert.Panics(t, func() { s.AddTask(1, 5, handle(2)) })
}

func TestUnknownTaskPanicsUnknownMutexUnlockIsSilent(t *testing.T) {
	s := newScheduler()
	assert.Panics(t, func() { s.MakeReady(99) })
	assert.Panics(t, func() { s.TaskPriority(99) })
	assert.Panics(t, func() { s.LockMutex(99, 1) })

	// unlock_mutex on an unknown task is still a contract violation...
	assert.Panics(t, func() { s.UnlockMutex(99, 1) })

	// ...but unlock_mutex on an unknown mutex for a known task is silent.
	s.AddTask(1, 10, handle(1))
	assert.NotPanics(t, func() { s.UnlockMutex(1, 12345) })
}

func TestReentrantLockPanics(t *testing.T) {
	s := newScheduler()
	s.AddTask(1, 10, handle(1))
	s.MakeReady(1)
	s.LockMutex(1, 1)
	assert.Panics(t, func() { s.LockMutex(1, 1) })
}

func TestViolationCarriesOpAndIDs(t *testing.T) {
	s := newScheduler()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		v, ok := r.(*schederr.Violation)
		require.True(t, ok)
		assert.Equal(t, "autosar", v.Op)
		assert.EqualValues(t, 99, v.TaskID)
		assert.EqualValues(t, 0, v.MutexID)
	}()
	s.TaskPriority(99)
}

// Property: the currently dispatched task always has the numerically
// smallest (best) priority among {current} ∪ ready.
func TestPropertyCurrentIsAlwaysBest(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		s := newScheduler()
		n := 5
		for i := 1; i <= n; i++ {
			s.AddTask(schedtype.TaskID(i), fppi.Priority(1+rng.Intn(50)), handle(i))
		}
		for i := 1; i <= n; i++ {
			s.MakeReady(schedtype.TaskID(i))
		}
		cur, ok := s.CurrentTask()
		require.True(t, ok)
		best := fppi.Priority(1 << 62)
		var bestID schedtype.TaskID
		for i := 1; i <= n; i++ {
			p := s.TaskPriority(schedtype.TaskID(i))
			if p < best {
				best = p
				bestID = schedtype.TaskID(i)
			}
		}
		assert.Equal(t, handle(int(bestID)), cur)
	}
}
