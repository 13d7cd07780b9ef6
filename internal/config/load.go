package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Overrides carries command line and environment values. Non-zero
// fields replace the corresponding file values.
type Overrides struct {
	Token         string
	BaseURL       string
	Repositories  []string
	Organizations []string
	Port          int

	// Bind is a host:port listen address; a non-zero Port wins over
	// its port.
	Bind string

	// PollInterval and WorkflowsRefresh accept a Go duration ("5m") or
	// a bare number of seconds ("300").
	PollInterval     string
	WorkflowsRefresh string
}

// Apply merges o into raw.
func (o Overrides) Apply(raw *RawConfig) error {
	if o.Token != "" {
		raw.GitHub.Token = o.Token
	}
	if o.BaseURL != "" {
		raw.GitHub.BaseURL = o.BaseURL
	}
	if repos := flatten(o.Repositories); len(repos) > 0 {
		raw.GitHub.Repositories = repos
	}
	if orgs := flatten(o.Organizations); len(orgs) > 0 {
		raw.GitHub.Organizations = orgs
	}
	if o.PollInterval != "" {
		d, err := parseSeconds(o.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll interval: %w", err)
		}
		raw.Collection.Interval = d
	}
	if o.WorkflowsRefresh != "" {
		d, err := parseSeconds(o.WorkflowsRefresh)
		if err != nil {
			return fmt.Errorf("invalid workflows refresh: %w", err)
		}
		raw.Collection.WorkflowsRefresh = d
	}
	if o.Bind != "" {
		host, port, err := net.SplitHostPort(o.Bind)
		if err != nil {
			return fmt.Errorf("invalid bind address: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid bind port %q", port)
		}
		prom := o.prometheus(raw)
		prom.Host = host
		prom.Port = p
	}
	if o.Port != 0 {
		o.prometheus(raw).Port = o.Port
	}
	return nil
}

// prometheus returns the raw Prometheus section, creating an enabled one
// when the file has none.
func (o Overrides) prometheus(raw *RawConfig) *RawPrometheusExportConfig {
	if raw.Export.Prometheus == nil {
		raw.Export.Prometheus = &RawPrometheusExportConfig{Enabled: true}
	}
	return raw.Export.Prometheus
}

func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func flatten(values []string) RawList {
	var out RawList
	for _, v := range values {
		out = append(out, splitList(v)...)
	}
	return out
}

// Load reads the YAML configuration file at path, applies overrides and
// resolves the result. An empty path means configuration comes from
// overrides alone.
func Load(path string, o Overrides) (*Config, error) {
	raw := &RawConfig{}
	if path != "" {
		var err error
		raw, err = Parse(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := o.Apply(raw); err != nil {
		return nil, fmt.Errorf("invalid override: %w", err)
	}

	if err := Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg, err := Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}
	return cfg, nil
}
