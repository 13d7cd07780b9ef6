package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/neox5/ghexporter/internal/version"
)

const (
	// Prometheus defaults
	DefaultPrometheusPort = 8000
	DefaultPrometheusPath = "/metrics"

	// OTEL defaults
	DefaultOTELInterval  = 30 * time.Second
	DefaultOTELTransport = "grpc"
	DefaultOTELHost      = "localhost"
	DefaultOTELPortGRPC  = 4317
	DefaultOTELPortHTTP  = 4318
	DefaultServiceName   = "ghexporter"
)

// ExportConfig defines how metrics are exposed.
type ExportConfig struct {
	Prometheus *PrometheusExportConfig
	OTEL       *OTELExportConfig
}

// Validate applies defaults and validates export configuration.
func (e *ExportConfig) Validate() error {
	// Default to Prometheus enabled if no exporters configured
	if e.Prometheus == nil && e.OTEL == nil {
		e.Prometheus = &PrometheusExportConfig{Enabled: true}
	}

	if e.Prometheus != nil && e.Prometheus.Enabled {
		if err := e.Prometheus.Validate(); err != nil {
			return err
		}
	}
	if e.OTEL != nil && e.OTEL.Enabled {
		if err := e.OTEL.Validate(); err != nil {
			return err
		}
	}

	if !e.PrometheusEnabled() && !e.OTELEnabled() {
		return fmt.Errorf("at least one exporter must be enabled")
	}
	return nil
}

// PrometheusEnabled reports whether the scrape endpoint is served.
func (e *ExportConfig) PrometheusEnabled() bool {
	return e.Prometheus != nil && e.Prometheus.Enabled
}

// OTELEnabled reports whether metrics are pushed over OTLP.
func (e *ExportConfig) OTELEnabled() bool {
	return e.OTEL != nil && e.OTEL.Enabled
}

// PrometheusExportConfig defines Prometheus pull endpoint settings.
type PrometheusExportConfig struct {
	Enabled bool
	Host    string // empty listens on all interfaces
	Port    int
	Path    string
}

// GetAddress returns the listen address in host:port form.
func (c *PrometheusExportConfig) GetAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate applies defaults and validates Prometheus configuration.
func (c *PrometheusExportConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Port == 0 {
		c.Port = DefaultPrometheusPort
	}
	if c.Path == "" {
		c.Path = DefaultPrometheusPath
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid prometheus port: %d", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("invalid prometheus path %q: must start with /", c.Path)
	}
	if c.Path == HealthPath {
		return fmt.Errorf("prometheus path must not be %s", HealthPath)
	}
	return nil
}

// HealthPath is the liveness endpoint served next to the metrics path.
const HealthPath = "/healthz"

// OTELExportConfig defines OTEL push settings.
type OTELExportConfig struct {
	Enabled   bool
	Transport string
	Host      string
	Port      int
	Interval  time.Duration
	Resource  map[string]string
	Headers   map[string]string
}

// Validate applies defaults and validates OTEL configuration.
func (c *OTELExportConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Transport == "" {
		c.Transport = DefaultOTELTransport
	}
	if c.Transport != "grpc" && c.Transport != "http" {
		return fmt.Errorf("invalid transport: %s (must be grpc or http)", c.Transport)
	}

	if c.Host == "" {
		c.Host = DefaultOTELHost
	}
	if c.Port == 0 {
		if c.Transport == "grpc" {
			c.Port = DefaultOTELPortGRPC
		} else {
			c.Port = DefaultOTELPortHTTP
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid otel port: %d", c.Port)
	}

	if c.Interval == 0 {
		c.Interval = DefaultOTELInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("otel interval must be positive, got %s", c.Interval)
	}

	if c.Resource == nil {
		c.Resource = make(map[string]string)
	}
	if _, exists := c.Resource["service.name"]; !exists {
		c.Resource["service.name"] = DefaultServiceName
	}
	if _, exists := c.Resource["service.version"]; !exists {
		c.Resource["service.version"] = version.String()
	}

	return nil
}

// GetEndpoint returns the full endpoint address.
func (c *OTELExportConfig) GetEndpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
