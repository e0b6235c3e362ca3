package scheduler

import (
	"time"

	"github.com/smallbiznis/posledger/internal/config"
)

const JobRecurringEntries = "recurring_entries"

// Config controls scheduler intervals and timeouts.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	// LockTTL bounds how long a crashed process can keep other processes
	// from running a job.
	LockTTL     time.Duration
	LockPrefix  string
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
		LockTTL:     2 * time.Minute,
		LockPrefix:  "posledger:scheduler",
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Scheduler.Enabled,
		RunInterval: cfg.Scheduler.RunInterval,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		LockPrefix:  cfg.AppName + ":scheduler",
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	if c.LockPrefix == "" || c.LockPrefix == ":scheduler" {
		c.LockPrefix = defaults.LockPrefix
	}
	return c
}
