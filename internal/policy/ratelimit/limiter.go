// Package ratelimit paces EDGAR sub-batches with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/insider-filings-crawler/internal/metrics"
)

// DefaultInterval separates consecutive sub-batch starts. With sub-batches capped
// at ten documents this keeps the crawler at or below ten requests per second.
const DefaultInterval = time.Second

// Config holds pacer configuration.
type Config struct {
	// Interval is the minimum spacing between tokens.
	Interval time.Duration
	// Burst is the number of tokens available at once. Defaults to 1.
	Burst int
}

// Limiter hands out one token per Interval.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	metrics.Init()
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Wait blocks until a token is available, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Immediate grants are not delays.
	if duration := time.Since(start); duration > time.Millisecond {
		metrics.ObserveRateLimitDelay(duration)
	}
	return nil
}
