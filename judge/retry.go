package judge

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
)

// Retrier runs an attempt up to MaxRetries+1 times, sleeping
// BaseDelay*2^(n-2) before attempt n. Only retryable errors trigger
// another attempt.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier returns a Retrier with a context-aware sleep.
func NewRetrier(maxRetries int, baseDelay time.Duration) *Retrier {
	return &Retrier{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		Sleep:      sleepContext,
	}
}

// Do calls fn until it succeeds, fails with a final error, or attempts run out.
// It returns the last error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.MaxRetries+1; attempt++ {
		if attempt > 1 {
			delay := r.backoff(attempt)
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				return err
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt <= r.MaxRetries {
			slog.Debug("provider attempt failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return err
}

func (r *Retrier) backoff(attempt int) time.Duration {
	return r.BaseDelay * time.Duration(1<<(attempt-2))
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return r.Sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
