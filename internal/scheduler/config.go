package scheduler

import (
	"time"
)

// Config controls scheduler intervals and lock behavior.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockKey     string
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
		LockKey:     "scheduler:tick",
		LockTTL:     2 * time.Minute,
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
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}
