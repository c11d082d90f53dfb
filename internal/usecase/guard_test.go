package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

func TestGuard(t *testing.T) {
	ctx := context.Background()
	flags := flagSet{"c1/" + domain.FeatureEmailDraft: true}
	calls := 0
	g := NewGuard(flags, quotaFunc(func(context.Context, string) error {
		calls++
		if calls > 1 {
			return &domain.RateLimitError{}
		}
		return nil
	}))

	assert.NoError(t, g.Allow(ctx, "c1", domain.FeatureEmailDraft))
	assert.ErrorIs(t, g.Allow(ctx, "c1", domain.FeatureEmailDraft), domain.ErrRateLimited)
	assert.ErrorIs(t, g.Allow(ctx, "c1", domain.FeatureReviewSummary), domain.ErrFeatureDisabled)
	assert.ErrorIs(t, g.Allow(ctx, "", domain.FeatureEmailDraft), domain.ErrInvalidArgument)
	assert.Equal(t, 2, calls, "disabled features never consume quota")

	assert.NoError(t, g.Enabled(ctx, "c1", domain.FeatureEmailDraft))
	assert.Equal(t, 2, calls)
}

func TestGuard_NilDependencies(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, Guard{}.Allow(ctx, "c1", domain.FeatureEmailDraft), domain.ErrFeatureDisabled)
	assert.NoError(t, NewGuard(flagSet{"c1/x": true}, nil).Allow(ctx, "c1", "x"))
}

func TestGuard_DeniedLogCarriesConferenceOnce(t *testing.T) {
	var buf bytes.Buffer
	ctx := obsctx.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = obsctx.WithConference(ctx, "c1", domain.FeatureReviewSummary)

	assert.ErrorIs(t, NewGuard(flagSet{}, nil).Allow(ctx, "c1", domain.FeatureReviewSummary), domain.ErrFeatureDisabled)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"conference_id":"c1"`)))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"feature":"review_summary"`)))
}
