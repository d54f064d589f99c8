// Package schedtype holds the opaque types shared by both scheduler policy
// engines and by the execution substrate they drive. Keeping them in a leaf
// package lets the policy engines and the top-level selector depend on the
// same vocabulary without an import cycle.
package schedtype

// TaskID identifies a task within one scheduler instance. It is chosen by
// the caller and is opaque to the core beyond ordering for deterministic
// iteration.
type TaskID uint64

// MutexID identifies a mutex within one FPPI scheduler instance. Mutexes are
// created lazily on first reference; ids are caller-chosen and opaque.
type MutexID uint64

// TaskHandle is an opaque token understood by the execution substrate. The
// core never inspects it, only hands it back to Run.
type TaskHandle struct {
	v any
}

// NewTaskHandle wraps an arbitrary substrate-defined value as a TaskHandle.
func NewTaskHandle(v any) TaskHandle {
	return TaskHandle{v: v}
}

// Value returns the wrapped substrate-defined value.
func (h TaskHandle) Value() any {
	return h.v
}

// NoTask is the sentinel handle meaning "no executing task", used by
// no-op substrates in unit tests.
var NoTask = TaskHandle{}

// SchedulerResource is the opaque token passed to Run alongside a task
// handle; the core treats it as uninterpreted context for the substrate.
type SchedulerResource any

// Status is the opaque return value of a Run call. The core ignores it.
type Status any

// ExecutionSubstrate is the narrow outward-facing contract the scheduler
// core calls to make a chosen task run. The substrate is assumed to preempt
// whatever is running on the logical CPU behind resource and dispatch task.
type ExecutionSubstrate interface {
	Run(resource SchedulerResource, task TaskHandle) Status
}
