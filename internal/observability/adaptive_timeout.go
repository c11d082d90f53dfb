package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AdaptiveTimeout sizes per-attempt deadlines from observed latency: fast
// successes shrink it by 5%, timeouts grow it by 10%, always within [min, max].
type AdaptiveTimeout struct {
	mu sync.Mutex

	name    string
	base    time.Duration
	min     time.Duration
	max     time.Duration
	current time.Duration

	successes int64
	timeouts  int64
}

// NewAdaptiveTimeout starts at base. min and max are clamped around base.
func NewAdaptiveTimeout(name string, base, min, max time.Duration) *AdaptiveTimeout {
	if min <= 0 || min > base {
		min = base
	}
	if max < base {
		max = base
	}
	return &AdaptiveTimeout{name: name, base: base, min: min, max: max, current: base}
}

// Current returns the deadline the next attempt gets.
func (a *AdaptiveTimeout) Current() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// WithTimeout derives an attempt context bounded by Current.
func (a *AdaptiveTimeout) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.Current())
}

// RecordSuccess shrinks the deadline when the call used less than half of it.
func (a *AdaptiveTimeout) RecordSuccess(took time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes++
	if took >= a.current/2 {
		return
	}
	next := time.Duration(float64(a.current) * 0.95)
	if next < a.min {
		next = a.min
	}
	a.current = next
}

// RecordTimeout grows the deadline after an attempt ran out of time.
func (a *AdaptiveTimeout) RecordTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeouts++
	prev := a.current
	next := time.Duration(float64(a.current) * 1.10)
	if next > a.max {
		next = a.max
	}
	a.current = next
	if next != prev {
		slog.Info("adaptive timeout increased",
			slog.String("name", a.name),
			slog.Duration("old_timeout", prev),
			slog.Duration("new_timeout", next))
	}
}

// Reset returns to the base deadline.
func (a *AdaptiveTimeout) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = a.base
	a.successes, a.timeouts = 0, 0
}
