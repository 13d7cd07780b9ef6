// Package scheduler decides when each target is fetched.
//
// Every target runs its own small state machine:
//
//	Idle -> Fetching -> Updating -> Idle
//	Idle -> Fetching -> BackingOff -> Idle
//
// Due targets are started on a bounded worker pool. A target is never
// fetched twice concurrently, and a failing target is retried later with
// a growing delay so that it cannot starve the shared rate budget.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/github"
	"github.com/neox5/ghexporter/internal/metric"
	"github.com/neox5/ghexporter/internal/target"
	"golang.org/x/sync/semaphore"
)

// Defaults applied by New for zero option values.
const (
	DefaultInterval    = 5 * time.Minute
	DefaultMaxBackoff  = time.Hour
	DefaultConcurrency = 4
	DefaultGracePeriod = 10 * time.Second
)

// Fetcher retrieves the complete metric set of one target.
type Fetcher interface {
	Fetch(ctx context.Context, t target.Target) ([]metric.Sample, error)
}

// Store receives fetch outcomes.
type Store interface {
	Update(t target.Target, samples []metric.Sample) error
	UpdateFailure(t target.Target, err error) error
}

// Phase is the scheduling state of one target.
type Phase int

const (
	Idle Phase = iota
	Fetching
	Updating
	BackingOff
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Updating:
		return "updating"
	case BackingOff:
		return "backing_off"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of one target's schedule.
type Status struct {
	Phase    Phase
	Failures int
	NextAt   time.Time
	LastErr  error
}

// Options configures a Scheduler.
type Options struct {
	Interval    time.Duration
	MaxBackoff  time.Duration
	Concurrency int
	GracePeriod time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

type targetState struct {
	target   target.Target
	phase    Phase
	failures int
	nextAt   time.Time
	lastErr  error
}

// Scheduler drives periodic fetches of a fixed target set.
type Scheduler struct {
	fetcher Fetcher
	store   Store
	opts    Options
	clock   clock.Clock
	logger  *slog.Logger
	slots   *semaphore.Weighted
	running sync.WaitGroup
	wake    chan struct{}

	mu       sync.Mutex
	targets  []*targetState
	byID     map[string]*targetState
	stopping bool

	// commitMu orders result commits against abandonment: once
	// abandoned is set no fetch result reaches the store.
	commitMu  sync.RWMutex
	abandoned bool
}

// New creates a scheduler. All targets are due immediately.
func New(targets []target.Target, fetcher Fetcher, store Store, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	opts.MaxBackoff = max(opts.MaxBackoff, opts.Interval)
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Scheduler{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		slots:   semaphore.NewWeighted(int64(opts.Concurrency)),
		wake:    make(chan struct{}, 1),
		byID:    make(map[string]*targetState, len(targets)),
	}

	now := s.clock.Now()
	for _, t := range targets {
		if _, ok := s.byID[t.ID()]; ok {
			continue
		}
		ts := &targetState{target: t, phase: Idle, nextAt: now}
		s.targets = append(s.targets, ts)
		s.byID[t.ID()] = ts
	}
	return s
}

// NextDelay is the wait before the next attempt after failures
// consecutive failures: interval*(1+failures), capped at maxBackoff.
// It never decreases as failures grow and is interval for zero failures.
func NextDelay(interval, maxBackoff time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return interval
	}
	maxBackoff = max(maxBackoff, interval)
	if interval <= 0 || failures >= int(maxBackoff/interval) {
		return maxBackoff
	}
	return min(interval*time.Duration(1+failures), maxBackoff)
}

// Status returns the schedule of the target with the given ID.
func (s *Scheduler) Status(targetID string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.byID[targetID]
	if !ok {
		return Status{}, false
	}
	return Status{Phase: ts.phase, Failures: ts.failures, NextAt: ts.nextAt, LastErr: ts.lastErr}, true
}

// Dispatch starts every due target while the worker pool has capacity
// and returns how many were started. Targets that did not fit stay due.
// Fetches run with ctx.
func (s *Scheduler) Dispatch(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return 0
	}
	started := 0
	for _, ts := range s.targets {
		if ts.phase != Idle && ts.phase != BackingOff {
			continue
		}
		if now.Before(ts.nextAt) {
			continue
		}
		if !s.slots.TryAcquire(1) {
			break
		}
		ts.phase = Fetching
		s.running.Go(func() {
			s.fetch(ctx, ts)
		})
		started++
	}
	return started
}

// Wait blocks until every started fetch has finished.
func (s *Scheduler) Wait() {
	s.running.Wait()
}

// fetch frees its slot before waking Run, so a woken Dispatch always
// finds the capacity it was signalled for.
func (s *Scheduler) fetch(ctx context.Context, ts *targetState) {
	defer s.signal()
	defer s.slots.Release(1)

	samples, err := s.fetcher.Fetch(ctx, ts.target)

	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	if s.abandoned || (err != nil && github.Classify(err) == nil && ctx.Err() != nil) {
		s.logger.Debug("discarding abandoned fetch", "target", ts.target.ID())
		s.setPhase(ts, Idle)
		return
	}

	if err == nil {
		s.setPhase(ts, Updating)
		if uerr := s.store.Update(ts.target, samples); uerr != nil {
			s.logger.Error("storing samples", "target", ts.target.ID(), "error", uerr)
		}
		s.succeeded(ts, len(samples))
		return
	}

	if uerr := s.store.UpdateFailure(ts.target, err); uerr != nil {
		s.logger.Error("storing fetch failure", "target", ts.target.ID(), "error", uerr)
	}
	s.failed(ts, err)
}

func (s *Scheduler) setPhase(ts *targetState, p Phase) {
	s.mu.Lock()
	ts.phase = p
	s.mu.Unlock()
}

func (s *Scheduler) succeeded(ts *targetState, n int) {
	now := s.clock.Now()

	s.mu.Lock()
	ts.phase = Idle
	ts.failures = 0
	ts.lastErr = nil
	ts.nextAt = now.Add(s.opts.Interval)
	s.mu.Unlock()

	s.logger.Debug("fetch ok", "target", ts.target.ID(), "samples", n)
}

func (s *Scheduler) failed(ts *targetState, err error) {
	now := s.clock.Now()

	s.mu.Lock()
	ts.failures++
	failures := ts.failures
	next := now.Add(NextDelay(s.opts.Interval, s.opts.MaxBackoff, failures))
	if reset, ok := github.ResetAt(err); ok && errors.Is(err, github.ErrRateLimited) && reset.After(next) {
		next = reset
	}
	ts.phase = BackingOff
	ts.lastErr = err
	ts.nextAt = next
	s.mu.Unlock()

	attrs := []any{"target", ts.target.ID(), "class", github.ClassName(err), "error", err}
	switch {
	case errors.Is(err, github.ErrAuth):
		s.logger.Error("github authentication failed", attrs...)
	case errors.Is(err, github.ErrRateLimited):
		s.logger.Warn("rate limited", attrs...)
	default:
		s.logger.Warn("fetch failed", attrs...)
	}
	s.logger.Info("backoff scheduled", "target", ts.target.ID(), "failures", failures, "next", next)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// untilNextDue returns the wait until the earliest future due time of a
// target that is not fetching. ok is false when there is none; due
// targets blocked on pool capacity are woken by a completing fetch.
func (s *Scheduler) untilNextDue() (time.Duration, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		wait  time.Duration
		found bool
	)
	for _, ts := range s.targets {
		if ts.phase != Idle && ts.phase != BackingOff {
			continue
		}
		d := ts.nextAt.Sub(now)
		if d <= 0 {
			continue
		}
		if !found || d < wait {
			wait, found = d, true
		}
	}
	return wait, found
}

// Run dispatches due targets until ctx is cancelled. In-flight fetches
// then get the grace period to finish; afterwards their context is
// cancelled and their results are discarded. Run returns once every
// fetch has returned.
func (s *Scheduler) Run(ctx context.Context) {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	s.logger.Info("scheduler started",
		"targets", len(s.targets),
		"interval", s.opts.Interval,
		"concurrency", s.opts.Concurrency)

	for {
		s.Dispatch(workCtx)

		var timer <-chan time.Time
		if wait, ok := s.untilNextDue(); ok {
			timer = s.clock.After(wait)
		}

		select {
		case <-ctx.Done():
			s.shutdown(cancelWork)
			return
		case <-timer:
		case <-s.wake:
		}
	}
}

func (s *Scheduler) shutdown(cancelWork context.CancelFunc) {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return
	case <-s.clock.After(s.opts.GracePeriod):
	}

	s.commitMu.Lock()
	s.abandoned = true
	s.commitMu.Unlock()
	cancelWork()
	<-done

	s.logger.Warn("scheduler stopped, in-flight fetches abandoned", "grace_period", s.opts.GracePeriod)
}
