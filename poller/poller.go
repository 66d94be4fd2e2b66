// Package poller runs a probe on a fixed interval until it succeeds, a
// deadline or tick budget is spent, or the context is cancelled.
package poller

import (
	"context"
	"time"
)

type Outcome string

const (
	Found     Outcome = "found"
	TimedOut  Outcome = "timed_out"
	Cancelled Outcome = "cancelled"
)

const defaultInterval = time.Second

// Options bound a polling loop. At least one of Timeout, MaxTicks or a
// cancellable context should be set, otherwise Until only returns on success.
type Options struct {
	// Interval is the wait between probes.
	Interval time.Duration
	// Timeout is the overall wall-clock budget. Zero means none.
	Timeout time.Duration
	// MaxTicks caps the number of waits. Zero means no cap.
	MaxTicks int
	// Immediate probes once before the first wait.
	Immediate bool
	// Wake, when non-nil, cuts the current wait short.
	Wake <-chan struct{}
}

// Probe reports a value and whether polling can stop.
type Probe[T any] func(ctx context.Context) (T, bool)

// Until polls probe according to opts. Cancellation is reported as an
// outcome, not an error; callers that must not be interrupted pass a context
// without cancellation.
func Until[T any](ctx context.Context, opts Options, probe Probe[T]) (T, Outcome) {
	var zero T
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	if opts.Immediate {
		if ctx.Err() != nil {
			return zero, Cancelled
		}
		if v, ok := probe(ctx); ok {
			return v, Found
		}
	}

	for tick := 0; opts.MaxTicks <= 0 || tick < opts.MaxTicks; tick++ {
		wait := interval
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return zero, TimedOut
			}
			if remaining < wait {
				wait = remaining
			}
		}

		if !sleep(ctx, wait, opts.Wake) {
			return zero, Cancelled
		}
		if v, ok := probe(ctx); ok {
			return v, Found
		}
	}
	return zero, TimedOut
}

// sleep waits for d, a wake signal or cancellation. It returns false only
// when ctx is done.
func sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-wake:
	}
	return ctx.Err() == nil
}
