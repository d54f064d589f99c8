// Package scheduler is the public API of the l4rerust user-space scheduler
// core: a policy selector that constructs either a Fixed-Priority-with-
// Inheritance or a Weighted-Fair scheduler engine, plus the shared types
// both engines and their embedder speak.
//
// A constructed Scheduler is not internally synchronized; the caller
// serializes all calls to it (see the concurrency notes on scheduler/fppi
// and scheduler/wf).
package scheduler

import (
	"fmt"
	"os"

	"github.com/BDUG/l4rerust/scheduler/fppi"
	"github.com/BDUG/l4rerust/scheduler/schedtype"
	"github.com/BDUG/l4rerust/scheduler/wf"
)

// Re-exported shared vocabulary, so embedders only need to import this one
// package for the common case.
type (
	TaskID             = schedtype.TaskID
	MutexID            = schedtype.MutexID
	TaskHandle         = schedtype.TaskHandle
	SchedulerResource  = schedtype.SchedulerResource
	Status             = schedtype.Status
	ExecutionSubstrate = schedtype.ExecutionSubstrate
)

// NoTask is the sentinel handle meaning "no executing task".
var NoTask = schedtype.NoTask

// NewTaskHandle wraps an arbitrary substrate-defined value as a TaskHandle.
func NewTaskHandle(v any) TaskHandle {
	return schedtype.NewTaskHandle(v)
}

// EnvVar is the environment variable consulted by FromEnvironment.
const EnvVar = "L4_SCHEDULER"

// Policy names one of the two scheduling policies.
type Policy int

const (
	// PolicyFPPI selects the Fixed-Priority-with-Inheritance engine.
	PolicyFPPI Policy = iota
	// PolicyWF selects the Weighted-Fair engine.
	PolicyWF
)

// String returns the policy's canonical name, matching ParsePolicy's input.
func (p Policy) String() string {
	switch p {
	case PolicyFPPI:
		return "autosar"
	case PolicyWF:
		return "linux_like"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name ("autosar" or "linux_like",
// case-sensitive) into a Policy. An unrecognized name returns an error; it
// does not panic.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "autosar":
		return PolicyFPPI, nil
	case "linux_like":
		return PolicyWF, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown policy %q", name)
	}
}

// FromEnvironment resolves the active policy from the L4_SCHEDULER
// environment variable. It returns ok=false when the variable is unset or
// empty, leaving the choice of any default to the caller rather than baking
// one into the selector itself.
func FromEnvironment() (policy Policy, ok bool, err error) {
	v, present := os.LookupEnv(EnvVar)
	if !present || v == "" {
		return 0, false, nil
	}
	p, err := ParsePolicy(v)
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

// Scheduler is the minimal contract common to both policy engines: the
// embedder can always ask its name and who is current without caring which
// concrete policy is in effect. add_task takes policy-specific parameters
// (period for FPPI, weight for WF), so it has no place on this narrow
// interface; embedders that need policy-specific operations type-assert to
// FPPIScheduler or WFScheduler below — exactly the "polymorphism without
// class hierarchies" design spec.md calls for: a narrow common interface
// plus policy-specific methods on the concrete engine type.
type Scheduler interface {
	Name() string
	CurrentTask() (TaskHandle, bool)
}

// FPPIScheduler is the subset of scheduler/fppi.Scheduler's API an embedder
// typically calls directly.
type FPPIScheduler interface {
	Name() string
	AddTask(id TaskID, period fppi.Priority, handle TaskHandle)
	MakeReady(id TaskID)
	LockMutex(id TaskID, mid MutexID)
	UnlockMutex(id TaskID, mid MutexID)
	CurrentTask() (TaskHandle, bool)
	TaskPriority(id TaskID) fppi.Priority
}

// WFScheduler is the subset of scheduler/wf.Scheduler's API an embedder
// typically calls directly.
type WFScheduler interface {
	Name() string
	AddTask(id TaskID, weight uint64, handle TaskHandle)
	MakeReady(id TaskID)
	Tick()
	CurrentTask() (TaskHandle, bool)
	TaskRuntime(id TaskID) uint64
}

// CreateScheduler constructs the concrete engine for policy, bound to esi
// and resource: every dispatch the returned engine makes calls
// esi.Run(resource, handle) exactly once. The returned value satisfies
// FPPIScheduler for PolicyFPPI and WFScheduler for PolicyWF; callers that
// know the policy at the call site should type-assert to the concrete
// engine rather than go through the narrow Scheduler interface.
func CreateScheduler(policy Policy, esi ExecutionSubstrate, resource SchedulerResource) any {
	switch policy {
	case PolicyFPPI:
		return fppi.New(esi, resource)
	case PolicyWF:
		return wf.New(esi, resource)
	default:
		panic(fmt.Sprintf("scheduler: unhandled policy %v", policy))
	}
}

var (
	_ Scheduler     = (*fppi.Scheduler)(nil)
	_ Scheduler     = (*wf.Scheduler)(nil)
	_ FPPIScheduler = (*fppi.Scheduler)(nil)
	_ WFScheduler   = (*wf.Scheduler)(nil)
)
