// Package config loads the scheduler demo's configuration: which policy to
// run and how to log, following the teacher's layered viper + YAML + env
// var convention (the teacher resolves OLLAMA_* overrides over a YAML file
// over hardcoded defaults; here it's L4_SCHEDULER over the same file/env
// layering, scoped to the two things this binary actually needs).
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/BDUG/l4rerust/scheduler"
)

// SchedulerConfig selects and parameterizes the active policy engine.
type SchedulerConfig struct {
	// Policy is "autosar" or "linux_like". Empty means resolve from
	// L4_SCHEDULER, defaulting to "autosar".
	Policy string `yaml:"policy"`
}

// LoggingConfig controls the demo binary's structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the complete configuration for cmd/schedulerd.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns the configuration used when no file and no
// environment override are present.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{Policy: ""},
		Logging:   LoggingConfig{Level: "info", Pretty: false},
	}
}

// Load reads configFile (if non-empty) or searches standard locations for
// "config.yaml", layers L4_SCHEDULER and L4_LOG_LEVEL environment
// overrides on top, validates, and returns the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/l4rerust")
	}

	v.SetEnvPrefix("L4")
	v.AutomaticEnv()
	v.BindEnv("scheduler.policy", "L4_SCHEDULER")
	v.BindEnv("logging.level", "L4_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}

	return cfg, nil
}

// ResolvePolicy returns the configured policy: an explicit Scheduler.Policy
// wins, otherwise L4_SCHEDULER is consulted, otherwise this binary defaults
// to PolicyFPPI. scheduler.FromEnvironment itself makes no such default;
// picking one is this embedder's call, not the selector's.
func (c *Config) ResolvePolicy() (scheduler.Policy, error) {
	if c.Scheduler.Policy != "" {
		return scheduler.ParsePolicy(c.Scheduler.Policy)
	}
	if p, ok, err := scheduler.FromEnvironment(); err != nil {
		return 0, err
	} else if ok {
		return p, nil
	}
	return scheduler.PolicyFPPI, nil
}

// Validate checks that the configuration is self-consistent, using the
// same typed ValidationErrors pattern the teacher's internal/config uses.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Scheduler.Policy != "" {
		if _, err := scheduler.ParsePolicy(c.Scheduler.Policy); err != nil {
			errs = append(errs, ValidationError{
				Field:   "scheduler.policy",
				Value:   c.Scheduler.Policy,
				Message: "must be \"autosar\" or \"linux_like\"",
			})
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of debug, info, warn, error",
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
