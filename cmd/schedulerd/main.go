// Command schedulerd is a small demonstration binary that loads scheduler
// configuration, constructs the configured policy engine over an in-memory
// execution substrate, replays a scripted sequence of scheduling events,
// and prints the final state as JSON — the way an embedding application
// would exercise the scheduler/... packages end to end.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BDUG/l4rerust/internal/config"
	"github.com/BDUG/l4rerust/internal/schedlog"
	"github.com/BDUG/l4rerust/scheduler"
	"github.com/BDUG/l4rerust/scheduler/fppi"
	"github.com/BDUG/l4rerust/scheduler/wf"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:     "schedulerd",
		Short:   "Demonstrate the l4rerust scheduler core",
		Long:    "schedulerd loads scheduler configuration, constructs the configured policy engine, and replays a scripted sequence of scheduling events against an in-memory execution substrate.",
		Version: "0.1.0",
		RunE:    run,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a scheduler config YAML file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// noopSubstrate implements scheduler.ExecutionSubstrate by recording every
// Run call it receives, for the demo's final report.
type noopSubstrate struct {
	calls []string
}

func (s *noopSubstrate) Run(resource scheduler.SchedulerResource, task scheduler.TaskHandle) scheduler.Status {
	s.calls = append(s.calls, fmt.Sprintf("%v", task.Value()))
	return "ok"
}

type report struct {
	CorrelationID string   `json:"correlation_id"`
	Policy        string   `json:"policy"`
	Dispatched    []string `json:"dispatched"`
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log := schedlog.New(schedlog.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	correlationID := uuid.New().String()
	log = log.With().Str("correlation_id", correlationID).Logger()

	policy, err := cfg.ResolvePolicy()
	if err != nil {
		return err
	}
	log.Info().Str("policy", policy.String()).Msg("starting scheduler demo")

	substrate := &noopSubstrate{}
	rep := report{CorrelationID: correlationID, Policy: policy.String()}

	switch policy {
	case scheduler.PolicyFPPI:
		rep.Dispatched = runFPPIDemo(substrate, log)
	case scheduler.PolicyWF:
		rep.Dispatched = runWFDemo(substrate, log)
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runFPPIDemo(substrate *noopSubstrate, log zerolog.Logger) []string {
	s := fppi.New(substrate, nil, fppi.WithLogger(log))
	s.AddTask(1, 20, scheduler.NewTaskHandle("slow-periodic"))
	s.AddTask(2, 5, scheduler.NewTaskHandle("fast-periodic"))

	s.MakeReady(1)
	s.MakeReady(2)

	return substrate.calls
}

func runWFDemo(substrate *noopSubstrate, log zerolog.Logger) []string {
	s := wf.New(substrate, nil, wf.WithLogger(log))
	s.AddTask(1, 1024, scheduler.NewTaskHandle("worker-a"))
	s.AddTask(2, 2048, scheduler.NewTaskHandle("worker-b"))

	s.MakeReady(1)
	s.MakeReady(2)

	for i := 0; i < int(wf.BaseSlice)*2; i++ {
		s.Tick()
	}
	return substrate.calls
}
