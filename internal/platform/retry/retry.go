// Package retry provides a bounded polling loop with a fixed attempt budget.
// It replaces ad-hoc sleep loops around slow external work (PDF rendering)
// with an abstraction that carries attempt count, delay, and cancellation.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned when every attempt completed without success.
var ErrBudgetExhausted = errors.New("retry: attempt budget exhausted")

// Policy describes a bounded retry loop: at most Attempts polls, waiting
// Delay between consecutive polls. This is not a timeout with abort; the
// in-progress fn call is never interrupted, only the wait between calls.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPDFPolicy matches the report-generation wait budget: 10 polls,
// 3 seconds apart.
var DefaultPDFPolicy = Policy{Attempts: 10, Delay: 3 * time.Second}

// Do calls fn until it reports done, the attempt budget runs out, or ctx is
// cancelled. A non-nil error from fn stops the loop immediately and is
// returned as-is.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) (done bool, err error)) error {
	if p.Attempts <= 0 {
		return ErrBudgetExhausted
	}

	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	return ErrBudgetExhausted
}
