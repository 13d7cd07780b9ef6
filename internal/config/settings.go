package config

import (
	"fmt"
	"time"
)

// DefaultMonitorInterval is how often the resource and budget line is logged.
const DefaultMonitorInterval = time.Minute

// SettingsConfig holds general application settings.
type SettingsConfig struct {
	InternalMetrics InternalMetricsConfig
	MonitorInterval time.Duration
}

// InternalMetricsConfig controls ghexporter's self-monitoring metrics.
type InternalMetricsConfig struct {
	Enabled bool
}

// Validate applies defaults and validates settings configuration.
func (s *SettingsConfig) Validate() error {
	if s.MonitorInterval == 0 {
		s.MonitorInterval = DefaultMonitorInterval
	}
	if s.MonitorInterval < 0 {
		return fmt.Errorf("monitor_interval must be positive, got %s", s.MonitorInterval)
	}
	return nil
}
