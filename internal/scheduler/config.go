package scheduler

import "time"

type Config struct {
	RunInterval time.Duration
	RunTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Minute,
		RunTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}
