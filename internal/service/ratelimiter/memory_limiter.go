package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one rate.Limiter per key in process memory. It is used
// when Redis is not configured; each process owns its own instance.
type MemoryLimiter struct {
	cfg      BucketConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewMemoryLimiter applies cfg to every key.
func NewMemoryLimiter(cfg BucketConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, limiters: map[string]*rate.Limiter{}, now: time.Now}
}

func (m *MemoryLimiter) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, ok := m.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(m.cfg.RefillRate), int(m.cfg.Capacity))
		m.limiters[key] = lim
	}
	return lim
}

// Allow never returns an error.
func (m *MemoryLimiter) Allow(_ context.Context, key string, cost int64) (bool, time.Duration, error) {
	if m == nil || !m.cfg.Enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}
	now := m.now()
	r := m.limiter(key).ReserveN(now, int(cost))
	if !r.OK() {
		return false, 0, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
