package monitor

import (
	"time"

	"proctor/internal/proctoring/detectors"
	"proctor/internal/proctoring/identity"
)

// Config holds the monitor's timing and threshold tunables.
type Config struct {
	GraceDelay         time.Duration
	TrackInterval      time.Duration
	ReentryInterval    time.Duration
	DevToolsInterval   time.Duration
	DevToolsThreshold  int
	RepollInterval     time.Duration
	GeolocationTimeout time.Duration
	MatchThreshold     float64
	// ResumeReentryDelay is the wait before re-requesting fullscreen after a warning is dismissed.
	ResumeReentryDelay time.Duration
	// ExitReentryDelay is the wait before re-requesting fullscreen after a non-terminal fullscreen_exit warning.
	ExitReentryDelay time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		GraceDelay:         2 * time.Second,
		TrackInterval:      500 * time.Millisecond,
		ReentryInterval:    500 * time.Millisecond,
		DevToolsInterval:   time.Second,
		DevToolsThreshold:  detectors.DevToolsThreshold,
		RepollInterval:     500 * time.Millisecond,
		GeolocationTimeout: 10 * time.Second,
		MatchThreshold:     identity.DefaultMatchThreshold,
		ResumeReentryDelay: 100 * time.Millisecond,
		ExitReentryDelay:   time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GraceDelay <= 0 {
		c.GraceDelay = d.GraceDelay
	}
	if c.TrackInterval <= 0 {
		c.TrackInterval = d.TrackInterval
	}
	if c.ReentryInterval <= 0 {
		c.ReentryInterval = d.ReentryInterval
	}
	if c.DevToolsInterval <= 0 {
		c.DevToolsInterval = d.DevToolsInterval
	}
	if c.DevToolsThreshold <= 0 {
		c.DevToolsThreshold = d.DevToolsThreshold
	}
	if c.RepollInterval <= 0 {
		c.RepollInterval = d.RepollInterval
	}
	if c.GeolocationTimeout <= 0 {
		c.GeolocationTimeout = d.GeolocationTimeout
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = d.MatchThreshold
	}
	if c.ResumeReentryDelay <= 0 {
		c.ResumeReentryDelay = d.ResumeReentryDelay
	}
	if c.ExitReentryDelay <= 0 {
		c.ExitReentryDelay = d.ExitReentryDelay
	}
	return c
}
