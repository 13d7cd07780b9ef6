package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/neox5/ghexporter/internal/cache"
	"github.com/neox5/ghexporter/internal/ratelimit"
	"github.com/shirou/gopsutil/v4/process"
)

// BudgetSource reports the shared GitHub rate budget.
type BudgetSource interface {
	Status() ratelimit.Status
}

// HealthSource reports target health counts.
type HealthSource interface {
	Summary() cache.Summary
}

// Monitor periodically logs process resource usage, the rate budget and
// target health.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
	proc     *process.Process
	budget   BudgetSource
	health   HealthSource
}

// New creates a new monitor with specified collection interval. Resource
// usage is omitted when the process handle cannot be opened.
func New(interval time.Duration, budget BudgetSource, health HealthSource, logger *slog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("failed to get process handle", "error", err)
		proc = nil
	}

	return &Monitor{
		interval: interval,
		logger:   logger,
		proc:     proc,
		budget:   budget,
		health:   health,
	}
}

// Run starts the monitoring loop in a background goroutine that exits
// when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Go(func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		// Immediate first collection
		m.collect()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("monitor shutdown complete")
				return
			case <-ticker.C:
				m.collect()
			}
		}
	})
}

// Wait blocks until the monitor goroutine exits.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) collect() {
	m.logCollection()
	if m.proc != nil {
		m.logResources()
	}
}

// logCollection logs the rate budget and target health.
func (m *Monitor) logCollection() {
	attrs := []slog.Attr{}

	if m.health != nil {
		s := m.health.Summary()
		attrs = append(attrs,
			slog.Int("healthy", s.Healthy),
			slog.Int("stale", s.Stale),
			slog.Int("pending", s.Pending))
	}

	if m.budget != nil {
		st := m.budget.Status()
		if st.Known {
			attrs = append(attrs,
				slog.Int("budget", st.Remaining),
				slog.Time("budget_reset", st.ResetAt))
		} else {
			attrs = append(attrs, slog.String("budget", "unknown"))
		}
	}

	m.logger.LogAttrs(context.Background(), slog.LevelInfo, "collection", attrs...)
}

// logResources reads current process metrics and logs resource usage.
func (m *Monitor) logResources() {
	// ---- CPU ----
	processCPU, err := m.proc.CPUPercent()
	if err != nil {
		m.logger.Warn("failed to get CPU percent", "error", err)
		processCPU = 0
	}

	cores := runtime.GOMAXPROCS(-1)
	utilization := processCPU / float64(cores*100)

	// ---- Runtime / Memory ----
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rss := uint64(0)
	if mem, err := m.proc.MemoryInfo(); err == nil {
		rss = mem.RSS
	}

	mb := func(b uint64) float64 {
		return float64(b) / (1024 * 1024)
	}

	m.logger.LogAttrs(
		context.Background(),
		slog.LevelInfo,
		"resource",
		slog.String("cpu", fmt.Sprintf("%.4f%%", processCPU)),
		slog.String("util", fmt.Sprintf("%.4f%%", utilization*100)),
		slog.Int("cores", cores),
		slog.Int("gor", runtime.NumGoroutine()),
		slog.String(
			"mem",
			fmt.Sprintf("rss:%.2fMB alloc:%.2fMB sys:%.2fMB", mb(rss), mb(ms.HeapAlloc), mb(ms.HeapSys)),
		),
		slog.Uint64("gc", uint64(ms.NumGC)),
	)
}
