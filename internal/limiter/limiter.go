package limiter

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/23skdu/slist/internal/metrics"
)

// ErrRateLimited is returned when the next token would arrive after the
// context deadline.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config holds rate limiter configuration
type Config struct {
	RPS   int `envconfig:"RATE_LIMIT" default:"0"`       // 0 means disabled
	Burst int `envconfig:"RATE_LIMIT_BURST" default:"0"` // 0 means use RPS
}

// RateLimiter wraps the token bucket limiter
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.RPS <= 0 {
		return &RateLimiter{enabled: false}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RPS
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		enabled: true,
	}
}

// Enabled reports whether Wait can block.
func (l *RateLimiter) Enabled() bool {
	return l.enabled
}

// Wait blocks until n operations may proceed. A disabled limiter never
// blocks.
func (l *RateLimiter) Wait(ctx context.Context, n int) error {
	if !l.enabled {
		return nil
	}
	if err := l.limiter.WaitN(ctx, n); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Deadline too close or n above burst.
		metrics.RateLimitRequestsTotal.WithLabelValues("throttled").Inc()
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
	return nil
}
