package config

import "time"

// RawSettingsConfig holds general application settings
type RawSettingsConfig struct {
	InternalMetrics RawInternalMetricsConfig `yaml:"internal_metrics"`
	MonitorInterval time.Duration            `yaml:"monitor_interval"`
}

// RawInternalMetricsConfig controls ghexporter's self-monitoring metrics.
// Enabled defaults to true when omitted.
type RawInternalMetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}
