package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrFeatureDisabled", ErrFeatureDisabled, "feature disabled"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable, "embedding unavailable"},
		{"ErrUpstreamTimeout", ErrUpstreamTimeout, "upstream timeout"},
		{"ErrUpstreamRateLimit", ErrUpstreamRateLimit, "upstream rate limit"},
		{"ErrUpstreamSchema", ErrUpstreamSchema, "upstream schema invalid"},
		{"ErrInternal", ErrInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrInvalidInputIsInvalidArgument(t *testing.T) {
	wrapped := fmt.Errorf("op=similarity.Score: %w", ErrInvalidInput)
	assert.True(t, errors.Is(wrapped, ErrInvalidInput))
	assert.True(t, errors.Is(wrapped, ErrInvalidArgument))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}

func TestIsKnownFeature(t *testing.T) {
	for _, f := range AvailableFeatures {
		assert.True(t, IsKnownFeature(f), f)
	}
	assert.False(t, IsKnownFeature("telepathy"))
	assert.False(t, IsKnownFeature(""))
}

func TestFeatureUsageRate(t *testing.T) {
	assert.Equal(t, 0.0, FeatureUsage{Pending: 4}.Rate())
	assert.InDelta(t, 0.75, FeatureUsage{Accepted: 3, Rejected: 1, Pending: 9}.Rate(), 1e-9)
}

func TestSynopsisWordRange(t *testing.T) {
	lo, hi, ok := SynopsisMedium.WordRange()
	assert.True(t, ok)
	assert.Equal(t, 150, lo)
	assert.Equal(t, 250, hi)
	_, _, ok = SynopsisLength("epic").WordRange()
	assert.False(t, ok)
}

func TestDefaultAssignmentConstraints(t *testing.T) {
	c := DefaultAssignmentConstraints()
	assert.Equal(t, 5, c.MaxPapersPerReviewer)
	assert.Equal(t, 3, c.MinReviewersPerPaper)
	assert.True(t, c.WorkloadBalance)
	assert.Equal(t, 1.5, c.OverloadFactor)
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("op=guard: %w", &RateLimitError{RetryAfter: 36*time.Second + 400*time.Millisecond})
	assert.True(t, errors.Is(err, ErrRateLimited))

	var rl *RateLimitError
	assert.True(t, errors.As(err, &rl))
	assert.Equal(t, 36*time.Second+400*time.Millisecond, rl.RetryAfter)
	assert.Equal(t, "rate limited: retry after 36s", rl.Error())
}
