package github

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/neox5/ghexporter/internal/clock"
)

// RetryPolicy bounds the immediate retries of transient failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// do runs fn up to p.Attempts times. Only ErrTransient failures are
// retried; the delay doubles after each attempt and is jittered.
func (p RetryPolicy) do(ctx context.Context, clk clock.Clock, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) || i == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(jitter(delay)):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

// jitter returns a duration in [d/2, d]: half of d is kept, the other
// half is random.
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half+1)
}
