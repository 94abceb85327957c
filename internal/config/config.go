package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/hive/internal/optimization"
	"github.com/copyleftdev/hive/internal/optimization/colony"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	// Colony holds the run defaults used by the CLI and the job service.
	Colony struct {
		NumBees   int     `env:"ABC_NUM_BEES" envDefault:"10"`
		MaxIter   int     `env:"ABC_MAX_ITER" envDefault:"50"`
		Limit     int     `env:"ABC_LIMIT" envDefault:"5"`
		Lower     float64 `env:"ABC_LOWER" envDefault:"-10"`
		Upper     float64 `env:"ABC_UPPER" envDefault:"10"`
		Seed      int64   `env:"ABC_SEED" envDefault:"0"`
		Objective string  `env:"ABC_OBJECTIVE" envDefault:"sphere"`
	}
	Optimization struct {
		WorkerCount   int     `env:"OPT_WORKER_COUNT" envDefault:"4"`
		MaxIterations int     `env:"OPT_MAX_ITERATIONS" envDefault:"10000"`
		MaxBees       int     `env:"OPT_MAX_BEES" envDefault:"1000"`
		SubmitRate    float64 `env:"OPT_SUBMIT_RATE" envDefault:"10"`
		SubmitBurst   int     `env:"OPT_SUBMIT_BURST" envDefault:"20"`
		// MaxJobs caps the job table; the oldest finished jobs are evicted first.
		MaxJobs       int     `env:"OPT_MAX_JOBS" envDefault:"1000"`
	}
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the service limits and the colony defaults.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port < 0 || c.HTTP.Port > 65535:
		return optimization.InvalidConfigf("HTTP_PORT", "out of range: %d", c.HTTP.Port).WithComponent("config")
	case c.Optimization.WorkerCount < 1:
		return optimization.InvalidConfigf("OPT_WORKER_COUNT", "must be at least 1, got %d", c.Optimization.WorkerCount).WithComponent("config")
	case c.Optimization.MaxIterations < 0:
		return optimization.InvalidConfigf("OPT_MAX_ITERATIONS", "must not be negative, got %d", c.Optimization.MaxIterations).WithComponent("config")
	case c.Optimization.MaxBees < 2:
		return optimization.InvalidConfigf("OPT_MAX_BEES", "must be at least 2, got %d", c.Optimization.MaxBees).WithComponent("config")
	case c.Optimization.SubmitRate <= 0:
		return optimization.InvalidConfigf("OPT_SUBMIT_RATE", "must be positive, got %v", c.Optimization.SubmitRate).WithComponent("config")
	case c.Optimization.SubmitBurst < 1:
		return optimization.InvalidConfigf("OPT_SUBMIT_BURST", "must be at least 1, got %d", c.Optimization.SubmitBurst).WithComponent("config")
	case c.Optimization.MaxJobs < 1:
		return optimization.InvalidConfigf("OPT_MAX_JOBS", "must be at least 1, got %d", c.Optimization.MaxJobs).WithComponent("config")
	}

	if _, err := c.ColonyConfig(); err != nil {
		return err
	}
	return nil
}

// ColonyConfig converts the colony defaults into an optimizer configuration.
func (c *Config) ColonyConfig() (colony.Config, error) {
	objective, err := optimization.LookupObjective(c.Colony.Objective)
	if err != nil {
		return colony.Config{}, err
	}

	cc := colony.Config{
		NumBees:    c.Colony.NumBees,
		MaxIter:    c.Colony.MaxIter,
		Limit:      c.Colony.Limit,
		Lower:      c.Colony.Lower,
		Upper:      c.Colony.Upper,
		Objective:  objective,
		RandomSeed: c.Colony.Seed,
	}
	if err := cc.Validate(); err != nil {
		return colony.Config{}, err
	}
	return cc, nil
}
