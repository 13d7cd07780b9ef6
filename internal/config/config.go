package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/neox5/ghexporter/internal/target"
)

const (
	// GitHub defaults
	DefaultGitHubBaseURL = "https://api.github.com"
	DefaultGitHubTimeout = 10 * time.Second

	// Collection defaults
	DefaultInterval         = 5 * time.Minute
	DefaultWorkflowsRefresh = 30 * time.Minute
	DefaultConcurrency      = 4
	DefaultMaxBackoff       = time.Hour
	DefaultGracePeriod      = 10 * time.Second
	DefaultRetryAttempts    = 3
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultRetryMaxDelay    = 10 * time.Second
)

// Config holds the complete application configuration.
type Config struct {
	GitHub     GitHubConfig
	Collection CollectionConfig
	Export     ExportConfig
	Settings   SettingsConfig
}

// GitHubConfig defines the API endpoint, credentials and targets.
type GitHubConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	Repositories  []target.Target
	Organizations []target.Target
}

// Targets returns every configured target, repositories first.
func (g *GitHubConfig) Targets() []target.Target {
	out := make([]target.Target, 0, len(g.Repositories)+len(g.Organizations))
	out = append(out, g.Repositories...)
	return append(out, g.Organizations...)
}

// Validate applies defaults and validates GitHub configuration.
func (g *GitHubConfig) Validate() error {
	if g.BaseURL == "" {
		g.BaseURL = DefaultGitHubBaseURL
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultGitHubTimeout
	}

	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid github base_url %q: %w", g.BaseURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid github base_url %q: must be an absolute http(s) url", g.BaseURL)
	}
	if g.Timeout < 0 {
		return fmt.Errorf("github timeout must be positive, got %s", g.Timeout)
	}
	if len(g.Repositories) == 0 && len(g.Organizations) == 0 {
		return fmt.Errorf("at least one repository or organization must be configured")
	}
	return nil
}

// CollectionConfig defines how often and how concurrently targets are fetched.
type CollectionConfig struct {
	Interval         time.Duration
	WorkflowsRefresh time.Duration
	Concurrency      int
	MaxBackoff       time.Duration
	GracePeriod      time.Duration
	Retry            RetryConfig
}

// RetryConfig bounds immediate retries of transient API failures.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Validate applies defaults and validates collection configuration.
func (c *CollectionConfig) Validate() error {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.WorkflowsRefresh == 0 {
		c.WorkflowsRefresh = DefaultWorkflowsRefresh
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = max(DefaultMaxBackoff, c.Interval)
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultRetryMaxDelay
	}

	switch {
	case c.Interval < 0:
		return fmt.Errorf("collection interval must be positive, got %s", c.Interval)
	case c.WorkflowsRefresh < 0:
		return fmt.Errorf("collection workflows_refresh must be positive, got %s", c.WorkflowsRefresh)
	case c.Concurrency < 0:
		return fmt.Errorf("collection concurrency must be at least 1, got %d", c.Concurrency)
	case c.MaxBackoff < c.Interval:
		return fmt.Errorf("collection max_backoff (%s) must not be shorter than interval (%s)", c.MaxBackoff, c.Interval)
	case c.GracePeriod < 0:
		return fmt.Errorf("collection grace_period must be positive, got %s", c.GracePeriod)
	case c.Retry.Attempts < 0:
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	case c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay:
		return fmt.Errorf("retry delays must satisfy 0 < base_delay <= max_delay, got %s and %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	return nil
}
