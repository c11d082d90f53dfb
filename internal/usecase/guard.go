// Package usecase contains the AI feature services behind the HTTP API.
package usecase

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// FlagChecker answers whether a feature is on for a conference.
type FlagChecker interface {
	IsEnabled(ctx context.Context, conferenceID, feature string) bool
}

// QuotaChecker charges one call against a conference's quota.
type QuotaChecker interface {
	Check(ctx context.Context, conferenceID string) error
}

// Guard runs the feature flag check and then the per-conference quota.
type Guard struct {
	Flags FlagChecker
	Quota QuotaChecker
}

// NewGuard builds a Guard. quota may be nil to disable rate limiting.
func NewGuard(flags FlagChecker, quota QuotaChecker) Guard {
	return Guard{Flags: flags, Quota: quota}
}

// Allow returns ErrFeatureDisabled or a *domain.RateLimitError when the call must not proceed.
func (g Guard) Allow(ctx context.Context, conferenceID, feature string) error {
	if err := g.Enabled(ctx, conferenceID, feature); err != nil {
		return err
	}
	if g.Quota == nil {
		return nil
	}
	if err := g.Quota.Check(ctx, conferenceID); err != nil {
		observability.RateLimited(feature)
		return err
	}
	return nil
}

// Enabled checks only the feature flag. Used by calls that never reach the model.
func (g Guard) Enabled(ctx context.Context, conferenceID, feature string) error {
	if conferenceID == "" {
		return fmt.Errorf("%w: conference_id is required", domain.ErrInvalidArgument)
	}
	if g.Flags == nil || !g.Flags.IsEnabled(ctx, conferenceID, feature) {
		observability.FeatureGateDenied(feature)
		obsctx.LoggerFromContext(obsctx.WithConference(ctx, conferenceID, feature)).Info("feature disabled for conference")
		return fmt.Errorf("%w: %s is not enabled for conference %s", domain.ErrFeatureDisabled, feature, conferenceID)
	}
	return nil
}
