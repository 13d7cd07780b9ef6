package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neox5/ghexporter/internal/cache"
	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/config"
	"github.com/neox5/ghexporter/internal/exporter"
	"github.com/neox5/ghexporter/internal/github"
	"github.com/neox5/ghexporter/internal/monitor"
	"github.com/neox5/ghexporter/internal/ratelimit"
	"github.com/neox5/ghexporter/internal/scheduler"
	"github.com/neox5/ghexporter/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds initialized application components.
type App struct {
	Config             *config.Config
	Budget             *ratelimit.Tracker
	Cache              *cache.Cache
	Scheduler          *scheduler.Scheduler
	Monitor            *monitor.Monitor
	PrometheusExporter *exporter.PrometheusExporter
	OTELExporter       *exporter.OTELExporter
}

// New wires the collection engine and the enabled exporters.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	clk := clock.Real()
	targets := cfg.GitHub.Targets()

	budget := ratelimit.New(clk)
	store := cache.New(targets, clk)

	var (
		internal *prometheus.Registry
		metrics  *github.Metrics
	)
	if cfg.Settings.InternalMetrics.Enabled {
		internal = exporter.NewInternalRegistry(store)
		metrics = github.NewMetrics(internal, budget)
	}

	client, err := github.NewClient(github.Config{
		BaseURL:   cfg.GitHub.BaseURL,
		Token:     cfg.GitHub.Token,
		UserAgent: "ghexporter/" + version.String(),
		Timeout:   cfg.GitHub.Timeout,
		Retry: github.RetryPolicy{
			Attempts:  cfg.Collection.Retry.Attempts,
			BaseDelay: cfg.Collection.Retry.BaseDelay,
			MaxDelay:  cfg.Collection.Retry.MaxDelay,
		},
		Budget:  budget,
		Clock:   clk,
		Logger:  logger.With("component", "github"),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}
	if cfg.GitHub.Token == "" {
		logger.Warn("no github token configured, unauthenticated requests are limited to 60 per hour")
	}

	fetcher := github.NewFetcher(client, cfg.Collection.WorkflowsRefresh, logger.With("component", "fetcher"))

	sched := scheduler.New(targets, fetcher, store, scheduler.Options{
		Interval:    cfg.Collection.Interval,
		MaxBackoff:  cfg.Collection.MaxBackoff,
		Concurrency: cfg.Collection.Concurrency,
		GracePeriod: cfg.Collection.GracePeriod,
		Clock:       clk,
		Logger:      logger.With("component", "scheduler"),
	})

	a := &App{
		Config:    cfg,
		Budget:    budget,
		Cache:     store,
		Scheduler: sched,
		Monitor:   monitor.New(cfg.Settings.MonitorInterval, budget, store, logger.With("component", "monitor")),
	}

	if cfg.Export.PrometheusEnabled() {
		a.PrometheusExporter = exporter.NewPrometheusExporter(cfg.Export.Prometheus, store, internal, logger)
	}

	if cfg.Export.OTELEnabled() {
		a.OTELExporter, err = exporter.NewOTELExporter(ctx, cfg.Export.OTEL, store, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTEL exporter: %w", err)
		}
	}

	return a, nil
}
