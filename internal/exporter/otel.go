package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neox5/ghexporter/internal/config"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTELExporter pushes cache snapshots to an OTEL collector.
type OTELExporter struct {
	config        *config.OTELExportConfig
	meterProvider *sdkmetric.MeterProvider
	meter         otelmetric.Meter
	instruments   map[string]instrument
	src           Source
	logger        *slog.Logger
}

// NewOTELExporter creates a new OTEL exporter.
func NewOTELExporter(ctx context.Context, cfg *config.OTELExportConfig, src Source, logger *slog.Logger) (*OTELExporter, error) {
	res, err := createOTELResource(ctx, cfg.Resource)
	if err != nil {
		return nil, err
	}

	exporter, err := createMetricExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newOTELExporter(cfg, src, logger, sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
	))
}

// newOTELExporter registers instruments on provider.
func newOTELExporter(cfg *config.OTELExportConfig, src Source, logger *slog.Logger, provider *sdkmetric.MeterProvider) (*OTELExporter, error) {
	e := &OTELExporter{
		config:        cfg,
		meterProvider: provider,
		meter:         provider.Meter("github.com/neox5/ghexporter"),
		src:           src,
		logger:        logger,
	}
	if err := registerOTELInstruments(e); err != nil {
		return nil, fmt.Errorf("failed to register otel instruments: %w", err)
	}
	return e, nil
}

// Start blocks until ctx is cancelled; the periodic reader pushes on its own.
func (e *OTELExporter) Start(ctx context.Context) error {
	e.logger.Info("starting otel exporter",
		"endpoint", e.config.GetEndpoint(),
		"transport", e.config.Transport,
		"push_interval", e.config.Interval,
	)

	<-ctx.Done()
	return e.Stop()
}

// Stop flushes pending data and shuts the meter provider down.
func (e *OTELExporter) Stop() error {
	e.logger.Info("shutting down otel exporter")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return e.meterProvider.Shutdown(ctx)
}
