// Package ratelimit tracks the GitHub API call budget shared by every
// fetcher in the process.
//
// The tracker trusts the server: every response carrying rate limit
// headers overwrites the local estimate. Between responses, reservations
// are deducted locally so that concurrent fetchers cannot overspend a
// budget the server already reported as nearly exhausted.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/neox5/ghexporter/internal/clock"
)

// ErrWouldExceedBudget is returned by Reserve when the remaining budget
// cannot cover the requested cost before the reset instant.
var ErrWouldExceedBudget = errors.New("request would exceed github rate budget")

// BudgetError carries the reset instant of an exhausted budget.
type BudgetError struct {
	Remaining int
	Cost      int
	ResetAt   time.Time
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: %d remaining, cost %d, resets at %s",
		ErrWouldExceedBudget, e.Remaining, e.Cost, e.ResetAt.Format(time.RFC3339))
}

func (e *BudgetError) Unwrap() error { return ErrWouldExceedBudget }

// Permit records a granted reservation.
type Permit struct {
	Cost int
	// Remaining is the local estimate after the reservation; -1 when the
	// budget is unknown.
	Remaining int
}

// Status is a point-in-time view of the budget.
type Status struct {
	Remaining int
	ResetAt   time.Time
	Known     bool
}

// Tracker is the process-wide rate budget.
type Tracker struct {
	mu        sync.Mutex
	clock     clock.Clock
	remaining int
	resetAt   time.Time
	known     bool
}

// New creates a tracker with an unknown budget.
func New(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker{clock: clk}
}

// Reserve deducts cost from the budget, or fails fast when the budget
// is known to be exhausted until its reset instant.
func (t *Tracker) Reserve(cost int) (Permit, error) {
	if cost < 1 {
		cost = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	if !t.known {
		return Permit{Cost: cost, Remaining: -1}, nil
	}
	if t.remaining < cost {
		return Permit{}, &BudgetError{Remaining: t.remaining, Cost: cost, ResetAt: t.resetAt}
	}
	t.remaining -= cost
	return Permit{Cost: cost, Remaining: t.remaining}, nil
}

// Record overwrites the budget with authoritative values from a response.
func (t *Tracker) Record(remaining int, resetAt time.Time) {
	if remaining < 0 {
		remaining = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = remaining
	t.resetAt = resetAt
	t.known = true
	t.expireLocked()
}

// RecordHeaders updates the budget from X-RateLimit-Remaining and
// X-RateLimit-Reset. Responses without both headers are ignored.
func (t *Tracker) RecordHeaders(header http.Header) bool {
	remainingStr := header.Get("X-RateLimit-Remaining")
	resetStr := header.Get("X-RateLimit-Reset")
	if remainingStr == "" || resetStr == "" {
		return false
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return false
	}
	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return false
	}

	t.Record(remaining, time.Unix(resetUnix, 0))
	return true
}

// Status returns the current budget view.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	return Status{Remaining: t.remaining, ResetAt: t.resetAt, Known: t.known}
}

// expireLocked forgets the budget once its reset instant has passed:
// GitHub refills atomically, so the next request is allowed optimistically.
// Must be called with mu held.
func (t *Tracker) expireLocked() {
	if t.known && !t.clock.Now().Before(t.resetAt) {
		t.known = false
		t.remaining = 0
	}
}
