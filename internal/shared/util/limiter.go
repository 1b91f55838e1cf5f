package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket. A nil *Limiter never blocks.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter returns a limiter refilling r tokens per second with burst b.
// r <= 0 disables limiting.
func NewLimiter(r float64, b int) *Limiter {
	if r <= 0 {
		return &Limiter{inner: rate.NewLimiter(rate.Inf, 0)}
	}
	if b < 1 {
		b = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

func (l *Limiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return ctx.Err()
	}
	return l.inner.WaitN(ctx, n)
}
