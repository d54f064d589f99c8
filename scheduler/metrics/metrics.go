// Package metrics provides optional Prometheus instrumentation for the
// scheduler core. Nothing here is required for correctness: both policy
// engines function identically whether or not an Observer is installed.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BDUG/l4rerust/scheduler/fppi"
	"github.com/BDUG/l4rerust/scheduler/schedtype"
)

// Recorder implements the engine-facing Observer interfaces exposed by
// scheduler/fppi and scheduler/wf (both share this shape, so one type
// satisfies either via structural typing).
type Recorder struct {
	engine      string
	dispatches  *prometheus.CounterVec
	preemptions *prometheus.CounterVec
	boosts      *prometheus.CounterVec
	readyDepth  prometheus.Gauge
}

// NewRecorder registers the scheduler's metrics under reg for the named
// engine ("autosar" or "linux_like"), which is recorded as the "engine"
// label. Each Recorder registers its own counter vectors, so a registry
// holds at most one Recorder: calling NewRecorder a second time with the
// same reg panics in MustRegister.
func NewRecorder(reg prometheus.Registerer, engine string) *Recorder {
	r := &Recorder{
		engine: engine,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l4_scheduler_dispatch_total",
			Help: "Number of tasks dispatched by the scheduler core.",
		}, []string{"engine", "task"}),
		preemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l4_scheduler_preempt_total",
			Help: "Number of tasks preempted by the scheduler core.",
		}, []string{"engine", "task"}),
		boosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l4_scheduler_inheritance_boost_total",
			Help: "Number of priority-inheritance boosts applied (FPPI only).",
		}, []string{"engine", "task"}),
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "l4_scheduler_ready_depth",
			Help:        "Most recently observed ready-queue depth.",
			ConstLabels: prometheus.Labels{"engine": engine},
		}),
	}
	reg.MustRegister(r.dispatches, r.preemptions, r.boosts, r.readyDepth)
	return r
}

func taskLabel(id schedtype.TaskID) string {
	return fmt.Sprintf("%d", id)
}

// OnDispatch implements fppi.Observer and wf.Observer.
func (r *Recorder) OnDispatch(id schedtype.TaskID) {
	r.dispatches.WithLabelValues(r.engine, taskLabel(id)).Inc()
}

// OnPreempt implements fppi.Observer and wf.Observer.
func (r *Recorder) OnPreempt(id schedtype.TaskID) {
	r.preemptions.WithLabelValues(r.engine, taskLabel(id)).Inc()
}

// OnInheritanceBoost implements fppi.Observer; wf has no inheritance, so wf
// schedulers simply never call it.
func (r *Recorder) OnInheritanceBoost(boosted schedtype.TaskID, from fppi.Priority) {
	r.boosts.WithLabelValues(r.engine, taskLabel(boosted)).Inc()
}

// SetReadyDepth records the current ready-queue depth, for callers that
// poll it after AddTask/MakeReady/Tick rather than hooking every mutation.
func (r *Recorder) SetReadyDepth(n int) {
	r.readyDepth.Set(float64(n))
}

// Observer wraps a schedtype.ExecutionSubstrate to record a dispatch
// counter and a status label per Run call, without altering ESI semantics:
// the wrapped substrate's return value passes through unchanged.
type Observer struct {
	next schedtype.ExecutionSubstrate
	runs *prometheus.CounterVec
}

// NewObserver wraps next, registering its counter under reg.
func NewObserver(reg prometheus.Registerer, next schedtype.ExecutionSubstrate) *Observer {
	o := &Observer{
		next: next,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l4_scheduler_esi_run_total",
			Help: "Number of ExecutionSubstrate.Run invocations, labeled by returned status.",
		}, []string{"status"}),
	}
	reg.MustRegister(o.runs)
	return o
}

// Run implements schedtype.ExecutionSubstrate.
func (o *Observer) Run(resource schedtype.SchedulerResource, task schedtype.TaskHandle) schedtype.Status {
	status := o.next.Run(resource, task)
	o.runs.WithLabelValues(fmt.Sprintf("%v", status)).Inc()
	return status
}
