package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// ConferenceKey is the bucket key charged for every AI call of a conference.
func ConferenceKey(conferenceID string) string { return "conference:" + conferenceID }

// ConferenceLimiter charges one token per AI call against the conference bucket.
type ConferenceLimiter struct {
	limiter Limiter
}

// NewConferenceLimiter wraps limiter; a nil limiter allows everything.
func NewConferenceLimiter(limiter Limiter) *ConferenceLimiter {
	return &ConferenceLimiter{limiter: limiter}
}

// Check returns a *domain.RateLimitError when the bucket is exhausted.
// Limiter failures are logged and the call is allowed.
func (c *ConferenceLimiter) Check(ctx context.Context, conferenceID string) error {
	if c == nil || c.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := c.limiter.Allow(ctx, ConferenceKey(conferenceID), 1)
	if err != nil {
		obsctx.LoggerFromContext(obsctx.WithConference(ctx, conferenceID, "")).Warn("rate limiter unavailable; allowing request",
			slog.Any("error", err))
		return nil
	}
	if !allowed {
		return fmt.Errorf("op=ratelimiter.Check: conference %s: %w", conferenceID, &domain.RateLimitError{RetryAfter: retryAfter})
	}
	return nil
}
