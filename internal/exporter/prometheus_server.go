package exporter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/neox5/ghexporter/internal/config"
	"github.com/neox5/ghexporter/internal/exposition"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

var contentType = expfmt.NewFormat(expfmt.TypeTextPlain)

// newHandler builds the mux serving metrics at path and liveness at /healthz.
func newHandler(path string, src Source, internal *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	var handler http.Handler = &scrapeHandler{src: src, internal: internal, logger: logger}
	if internal != nil {
		handler = promhttp.InstrumentMetricHandler(internal, handler)
		logger.Info("enabled prometheus internal metrics",
			"metrics", []string{
				"promhttp_metric_handler_requests_total",
				"promhttp_metric_handler_requests_in_flight",
			})
	}

	// Wrap with debug logging
	handler = loggingMiddleware(handler, logger)

	mux.Handle("GET "+path, handler)
	mux.HandleFunc("GET "+config.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "OK")
	})
	return mux
}

// scrapeHandler renders the current snapshot followed by self-metrics.
type scrapeHandler struct {
	src      Source
	internal *prometheus.Registry
	logger   *slog.Logger
}

func (h *scrapeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, warnings := exposition.Render(h.src.Snapshot())
	for _, warn := range warnings {
		h.logger.Warn("sample omitted from exposition",
			"target", warn.Target, "metric", warn.Metric, "reason", warn.Reason)
	}

	if h.internal != nil {
		buf := bytes.NewBuffer(body)
		if err := writeRegistry(buf, h.internal); err != nil {
			h.logger.Error("gathering internal metrics", "error", err)
		}
		body = buf.Bytes()
	}

	w.Header().Set("Content-Type", string(contentType))
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("writing scrape response", "error", err)
	}
}

// writeRegistry appends the families gathered from reg in text format.
func writeRegistry(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	enc := expfmt.NewEncoder(w, contentType)
	for _, mf := range families {
		if encErr := enc.Encode(mf); encErr != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), encErr)
		}
	}
	return err
}

// loggingMiddleware logs scrape requests when debug logging is enabled
func loggingMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("prometheus scrape", "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
