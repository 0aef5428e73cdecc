package papersources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/referee-finder/internal/domain"
)

// RateLimiterConfig configures a provider's request budget.
type RateLimiterConfig struct {
	// RatePerSecond is the sustained token-bucket rate.
	RatePerSecond float64

	// Burst is the maximum number of tokens that can be consumed at once.
	Burst int

	// MinInterval is the minimum spacing between two consecutive requests.
	// Zero disables the spacing constraint.
	MinInterval time.Duration

	// DailyBudget caps the number of requests per UTC day. Zero means unlimited.
	DailyBudget int
}

// RateLimiter combines a token bucket, a minimum inter-request interval and
// an optional daily budget. One limiter is shared by every request to the
// same provider. It is safe for concurrent use.
type RateLimiter struct {
	bucket  *rate.Limiter
	spacing *rate.Limiter

	mu      sync.Mutex
	budget  int
	used    int
	day     time.Time
	nowFunc func() time.Time
}

// NewRateLimiter creates a token bucket limiter with no spacing or budget.
//
// Example configurations:
//   - PubMed: NewRateLimiter(3, 3) for 3 requests per second
//   - Semantic Scholar: NewRateLimiter(1, 1) for 1 request per second
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return NewRateLimiterWithConfig(RateLimiterConfig{RatePerSecond: ratePerSecond, Burst: burst})
}

// NewRateLimiterWithConfig creates a limiter from cfg.
func NewRateLimiterWithConfig(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	rl := &RateLimiter{
		bucket:  rate.NewLimiter(limit, cfg.Burst),
		budget:  cfg.DailyBudget,
		nowFunc: time.Now,
	}
	if cfg.MinInterval > 0 {
		rl.spacing = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return rl
}

// Wait blocks until a request is allowed or the context is canceled.
// It returns domain.ErrBudgetExhausted without waiting once the daily
// budget is spent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.take(); err != nil {
		return err
	}
	if r.spacing != nil {
		if err := r.spacing.Wait(ctx); err != nil {
			return err
		}
	}
	return r.bucket.Wait(ctx)
}

// Allow returns true if a request may proceed immediately, consuming a token
// and a unit of budget when it does.
func (r *RateLimiter) Allow() bool {
	if r.Remaining() == 0 {
		return false
	}
	now := r.nowFunc()
	if r.spacing != nil && r.spacing.TokensAt(now) < 1 {
		return false
	}
	if !r.bucket.AllowN(now, 1) {
		return false
	}
	if r.spacing != nil {
		r.spacing.AllowN(now, 1)
	}
	return r.take() == nil
}

// SetRate updates the sustained rate while preserving the burst size.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.bucket.SetLimit(rate.Limit(ratePerSecond))
}

// Remaining returns the requests left in today's budget, or -1 when unlimited.
func (r *RateLimiter) Remaining() int {
	if r.budget <= 0 {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	return r.budget - r.used
}

// Used returns the number of requests counted against today's budget.
func (r *RateLimiter) Used() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	return r.used
}

func (r *RateLimiter) take() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	if r.budget > 0 && r.used >= r.budget {
		return fmt.Errorf("%w: %d requests used today", domain.ErrBudgetExhausted, r.used)
	}
	r.used++
	return nil
}

// rollover resets the counter when the UTC day changes. Callers hold mu.
func (r *RateLimiter) rollover() {
	today := r.nowFunc().UTC().Truncate(24 * time.Hour)
	if !today.Equal(r.day) {
		r.day = today
		r.used = 0
	}
}
