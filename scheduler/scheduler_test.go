package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDUG/l4rerust/scheduler"
	"github.com/BDUG/l4rerust/scheduler/fppi"
	"github.com/BDUG/l4rerust/scheduler/wf"
)

type nopSubstrate struct{}

func (nopSubstrate) Run(resource scheduler.SchedulerResource, task scheduler.TaskHandle) scheduler.Status {
	return "ok"
}

func TestParsePolicy(t *testing.T) {
	p, err := scheduler.ParsePolicy("autosar")
	require.NoError(t, err)
	assert.Equal(t, scheduler.PolicyFPPI, p)

	p, err = scheduler.ParsePolicy("linux_like")
	require.NoError(t, err)
	assert.Equal(t, scheduler.PolicyWF, p)

	_, err = scheduler.ParsePolicy("round-robin")
	assert.Error(t, err)
}

func TestFromEnvironmentAbsentWhenUnset(t *testing.T) {
	t.Setenv(scheduler.EnvVar, "")
	_, ok, err := scheduler.FromEnvironment()
	require.NoError(t, err)
	assert.False(t, ok, "an unset/empty environment variable must yield no result, not a default")
}

func TestFromEnvironmentHonorsOverride(t *testing.T) {
	t.Setenv(scheduler.EnvVar, "linux_like")
	p, ok, err := scheduler.FromEnvironment()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scheduler.PolicyWF, p)
}

func TestFromEnvironmentRejectsGarbage(t *testing.T) {
	t.Setenv(scheduler.EnvVar, "not-a-policy")
	_, ok, err := scheduler.FromEnvironment()
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestCreateSchedulerReturnsConcreteEngine(t *testing.T) {
	s := scheduler.CreateScheduler(scheduler.PolicyFPPI, nopSubstrate{}, nil)
	_, ok := s.(*fppi.Scheduler)
	assert.True(t, ok)

	s = scheduler.CreateScheduler(scheduler.PolicyWF, nopSubstrate{}, nil)
	_, ok = s.(*wf.Scheduler)
	assert.True(t, ok)
}

func TestCreateSchedulerUnhandledPolicyPanics(t *testing.T) {
	assert.Panics(t, func() {
		scheduler.CreateScheduler(scheduler.Policy(99), nopSubstrate{}, nil)
	})
}
