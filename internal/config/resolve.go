package config

import (
	"fmt"
	"maps"

	"github.com/neox5/ghexporter/internal/target"
)

// Resolve converts a raw config into the final config, applying defaults
// and validating every section.
func Resolve(raw *RawConfig) (*Config, error) {
	github, err := resolveGitHub(&raw.GitHub)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve github config: %w", err)
	}

	collection, err := resolveCollection(&raw.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection config: %w", err)
	}

	export, err := resolveExport(&raw.Export)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export config: %w", err)
	}

	settings, err := resolveSettings(&raw.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}

	return &Config{
		GitHub:     github,
		Collection: collection,
		Export:     export,
		Settings:   settings,
	}, nil
}

// resolveGitHub parses target identifiers, dropping duplicates
func resolveGitHub(raw *RawGitHubConfig) (GitHubConfig, error) {
	result := GitHubConfig{
		BaseURL: raw.BaseURL,
		Token:   raw.Token,
		Timeout: raw.Timeout,
	}

	seen := make(map[string]bool)
	for _, s := range raw.Repositories {
		t, err := target.ParseRepository(s)
		if err != nil {
			return GitHubConfig{}, err
		}
		if !seen[t.String()] {
			seen[t.String()] = true
			result.Repositories = append(result.Repositories, t)
		}
	}
	for _, s := range raw.Organizations {
		t, err := target.ParseOrganization(s)
		if err != nil {
			return GitHubConfig{}, err
		}
		if !seen[t.String()] {
			seen[t.String()] = true
			result.Organizations = append(result.Organizations, t)
		}
	}

	if err := result.Validate(); err != nil {
		return GitHubConfig{}, err
	}
	return result, nil
}

func resolveCollection(raw *RawCollectionConfig) (CollectionConfig, error) {
	result := CollectionConfig{
		Interval:         raw.Interval,
		WorkflowsRefresh: raw.WorkflowsRefresh,
		Concurrency:      raw.Concurrency,
		MaxBackoff:       raw.MaxBackoff,
		GracePeriod:      raw.GracePeriod,
		Retry: RetryConfig{
			Attempts:  raw.Retry.Attempts,
			BaseDelay: raw.Retry.BaseDelay,
			MaxDelay:  raw.Retry.MaxDelay,
		},
	}
	if err := result.Validate(); err != nil {
		return CollectionConfig{}, err
	}
	return result, nil
}

// resolveExport converts raw export config to resolved export config
func resolveExport(raw *RawExportConfig) (ExportConfig, error) {
	result := ExportConfig{}

	if raw.Prometheus != nil {
		result.Prometheus = &PrometheusExportConfig{
			Enabled: raw.Prometheus.Enabled,
			Host:    raw.Prometheus.Host,
			Port:    raw.Prometheus.Port,
			Path:    raw.Prometheus.Path,
		}
	}

	if raw.OTEL != nil {
		result.OTEL = &OTELExportConfig{
			Enabled:   raw.OTEL.Enabled,
			Transport: raw.OTEL.Transport,
			Host:      raw.OTEL.Host,
			Port:      raw.OTEL.Port,
			Interval:  raw.OTEL.Interval,
			Resource:  maps.Clone(raw.OTEL.Resource),
			Headers:   maps.Clone(raw.OTEL.Headers),
		}
	}

	if err := result.Validate(); err != nil {
		return ExportConfig{}, err
	}
	return result, nil
}

// resolveSettings converts raw settings config to resolved settings config
func resolveSettings(raw *RawSettingsConfig) (SettingsConfig, error) {
	result := SettingsConfig{
		InternalMetrics: InternalMetricsConfig{Enabled: true},
		MonitorInterval: raw.MonitorInterval,
	}
	if raw.InternalMetrics.Enabled != nil {
		result.InternalMetrics.Enabled = *raw.InternalMetrics.Enabled
	}

	if err := result.Validate(); err != nil {
		return SettingsConfig{}, err
	}
	return result, nil
}
