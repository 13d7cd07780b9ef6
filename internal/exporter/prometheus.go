package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/neox5/ghexporter/internal/cache"
	"github.com/neox5/ghexporter/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Source provides the snapshot rendered on each scrape.
type Source interface {
	Snapshot() cache.Snapshot
}

// PrometheusExporter provides HTTP server for Prometheus metrics.
type PrometheusExporter struct {
	addr   string
	path   string
	server *http.Server
	logger *slog.Logger
}

// NewPrometheusExporter creates a new Prometheus HTTP exporter serving the
// snapshots of src. Self-metrics from internal are appended to every
// scrape; internal may be nil.
func NewPrometheusExporter(
	cfg *config.PrometheusExportConfig,
	src Source,
	internal *prometheus.Registry,
	logger *slog.Logger,
) *PrometheusExporter {
	addr := cfg.GetAddress()

	return &PrometheusExporter{
		addr:   addr,
		path:   cfg.Path,
		logger: logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           newHandler(cfg.Path, src, internal, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the HTTP handler serving the metrics and health paths.
func (e *PrometheusExporter) Handler() http.Handler {
	return e.server.Handler
}

// Start serves HTTP requests until ctx is cancelled.
func (e *PrometheusExporter) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		e.logger.Info("starting prometheus exporter", "addr", e.addr, "path", e.path)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("listen on %s: %w", e.addr, err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return e.Stop()
	}
}

// Stop gracefully stops the exporter.
func (e *PrometheusExporter) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.logger.Info("shutting down prometheus exporter")
	return e.server.Shutdown(ctx)
}
