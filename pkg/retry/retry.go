// Package retry provides the retry helper shared by every LLM and graph
// backend call site.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options control retry behavior. Zero values fall back to the defaults used
// across the orchestrator: 3 attempts, 2s initial delay, 2x backoff.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	Backoff      float64
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.Backoff <= 0 {
		o.Backoff = 2
	}
	return o
}

// Call invokes fn up to opts.MaxRetries times with exponential backoff,
// honoring ctx between attempts. name appears in logs and the final error.
func Call[T any](ctx context.Context, name string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	opts = opts.withDefaults()

	delay := opts.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == opts.MaxRetries {
			break
		}
		slog.Warn("Transient call failed, retrying",
			"call", name,
			"attempt", attempt,
			"max_retries", opts.MaxRetries,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * opts.Backoff)
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, opts.MaxRetries, lastErr)
}

// Do is Call for functions with no result.
func Do(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, name, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
