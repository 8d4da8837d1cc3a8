// Package retry provides bounded exponential backoff for calls to remote
// services. The embedding, vector index and generation adapters all wrap
// their HTTP round-trips in the same helper, so retry policy lives in one
// place instead of being scattered across call sites.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultMaxAttempts is the default total number of attempts.
const DefaultMaxAttempts = 3

// DefaultBaseDelay is the default first backoff delay.
const DefaultBaseDelay = 500 * time.Millisecond

// Config parameterises the retry policy.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Each subsequent
	// retry doubles it, plus jitter to avoid thundering herds.
	BaseDelay time.Duration
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	return c
}

// Permanent wraps an error to mark it as not retryable. Do returns the
// wrapped error immediately without consuming further attempts.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string {
	return p.Err.Error()
}

func (p *Permanent) Unwrap() error {
	return p.Err
}

// Do runs op with bounded exponential backoff. It stops early on context
// cancellation and on errors marked Permanent. The returned error is the
// last attempt's error.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			base := cfg.BaseDelay << (attempt - 1)
			jitter := time.Duration(rand.Int64N(int64(base/2 + 1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(base + jitter):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if p, ok := err.(*Permanent); ok {
			return p.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	return fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient failure worth retrying (5xx and 429).
func RetryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}
