// Package featureflags gates AI features per conference.
package featureflags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// Manager reads flags through a Redis cache backed by the flag repository.
// A nil cache disables caching.
type Manager struct {
	repo  domain.FlagRepository
	cache redis.Cmdable
	ttl   time.Duration
}

// NewManager builds a Manager. ttl <= 0 means one hour.
func NewManager(repo domain.FlagRepository, cache redis.Cmdable, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{repo: repo, cache: cache, ttl: ttl}
}

// CacheKey is the Redis key holding "1" or "0" for a flag.
func CacheKey(conferenceID, feature string) string {
	return "feature_flag:" + conferenceID + ":" + feature
}

// IsEnabled reports whether feature is on for the conference. Unknown
// features, missing rows and store errors all read as disabled.
func (m *Manager) IsEnabled(ctx context.Context, conferenceID, feature string) bool {
	lg := obsctx.LoggerFromContext(ctx)
	if !domain.IsKnownFeature(feature) {
		return false
	}
	key := CacheKey(conferenceID, feature)
	if m.cache != nil {
		v, err := m.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return v == "1"
		case errors.Is(err, redis.Nil):
		default:
			lg.Warn("feature flag cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	enabled, err := m.repo.Get(ctx, conferenceID, feature)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			obsctx.LoggerFromContext(obsctx.WithConference(ctx, conferenceID, feature)).Error("feature flag lookup failed; treating as disabled",
				slog.Any("error", err))
			return false
		}
		enabled = false
	}
	m.writeCache(ctx, key, enabled)
	return enabled
}

// Enable turns feature on for the conference.
func (m *Manager) Enable(ctx context.Context, conferenceID, feature string) error {
	return m.set(ctx, conferenceID, feature, true)
}

// Disable turns feature off for the conference.
func (m *Manager) Disable(ctx context.Context, conferenceID, feature string) error {
	return m.set(ctx, conferenceID, feature, false)
}

// Set stores an explicit value.
func (m *Manager) Set(ctx context.Context, conferenceID, feature string, enabled bool) error {
	return m.set(ctx, conferenceID, feature, enabled)
}

func (m *Manager) set(ctx context.Context, conferenceID, feature string, enabled bool) error {
	if conferenceID == "" {
		return fmt.Errorf("op=featureflags.Set: %w: conference_id is required", domain.ErrInvalidArgument)
	}
	if !domain.IsKnownFeature(feature) {
		return fmt.Errorf("op=featureflags.Set: %w: unknown feature %q", domain.ErrInvalidArgument, feature)
	}
	err := m.repo.Upsert(ctx, domain.FeatureFlag{
		ConferenceID: conferenceID,
		Feature:      feature,
		Enabled:      enabled,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("op=featureflags.Set: %w", err)
	}
	m.writeCache(ctx, CacheKey(conferenceID, feature), enabled)
	obsctx.LoggerFromContext(obsctx.WithConference(ctx, conferenceID, feature)).Info("feature flag updated",
		slog.Bool("enabled", enabled))
	return nil
}

// List returns the known features stored for the conference, in catalogue order.
func (m *Manager) List(ctx context.Context, conferenceID string) ([]domain.FeatureFlag, error) {
	flags, err := m.repo.ListByConference(ctx, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("op=featureflags.List: %w", err)
	}
	byName := make(map[string]domain.FeatureFlag, len(flags))
	for _, f := range flags {
		byName[f.Feature] = f
	}
	out := make([]domain.FeatureFlag, 0, len(byName))
	for _, name := range domain.AvailableFeatures {
		if f, ok := byName[name]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Available returns the feature catalogue.
func (m *Manager) Available() []string {
	return append([]string(nil), domain.AvailableFeatures...)
}

// Seed applies a conference -> feature -> enabled map, conferences in the given
// order. Unknown feature names are rejected before anything is written.
func (m *Manager) Seed(ctx context.Context, conferences []string, flags map[string]map[string]bool) (int, error) {
	for _, conf := range conferences {
		for feature := range flags[conf] {
			if !domain.IsKnownFeature(feature) {
				return 0, fmt.Errorf("op=featureflags.Seed: %w: unknown feature %q for conference %s", domain.ErrInvalidArgument, feature, conf)
			}
		}
	}
	n := 0
	for _, conf := range conferences {
		for _, feature := range domain.AvailableFeatures {
			enabled, ok := flags[conf][feature]
			if !ok {
				continue
			}
			if err := m.set(ctx, conf, feature, enabled); err != nil {
				return n, fmt.Errorf("op=featureflags.Seed: %w", err)
			}
			n++
		}
	}
	return n, nil
}

func (m *Manager) writeCache(ctx context.Context, key string, enabled bool) {
	if m.cache == nil {
		return
	}
	v := "0"
	if enabled {
		v = "1"
	}
	if err := m.cache.Set(ctx, key, v, m.ttl).Err(); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("feature flag cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
