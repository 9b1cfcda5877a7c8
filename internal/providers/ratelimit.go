package providers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to a provider at a requests-per-minute budget.
type RateLimiter struct {
	limiter *rate.Limiter
	rpm     int

	mu            sync.Mutex
	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute with a burst of
// the same size.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
		rpm:     requestsPerMinute,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.totalConsumed++
	r.totalWaited += time.Since(start)
	r.mu.Unlock()
	return nil
}

// Record429 drains the bucket so the next callers wait for a refill.
func (r *RateLimiter) Record429() {
	r.mu.Lock()
	r.last429Time = time.Now()
	r.mu.Unlock()
	now := time.Now()
	if n := int(r.limiter.TokensAt(now)); n > 0 {
		r.limiter.AllowN(now, n)
	}
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens := int(r.limiter.Tokens())
	if tokens < 0 {
		tokens = 0
	}
	return RateLimiterStatus{
		TokensAvailable: tokens,
		TokensLimit:     r.rpm,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
	}
}
