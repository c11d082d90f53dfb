package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Load_DefaultValues(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.AuditSink)
	assert.False(t, cfg.UseKafkaAudit())
	assert.Equal(t, 100, cfg.RateLimitPerConference)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow)
	assert.Equal(t, time.Hour, cfg.FeatureFlagsCacheTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.EmbeddingCacheTTL)
	assert.Equal(t, 365, cfg.AuditRetentionDays)
	assert.Equal(t, 4, cfg.MatchConcurrency)
	assert.True(t, cfg.EnablePIIRedaction)
	assert.Equal(t, []string{"localhost:19092"}, cfg.KafkaBrokers)
}

func TestConfig_Load_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("AUDIT_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("RATE_LIMIT_PER_CONFERENCE", "25")
	t.Setenv("MATCH_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.True(t, cfg.UseKafkaAudit())
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.RateLimitPerConference)
	assert.Equal(t, 8, cfg.MatchConcurrency)
}

func TestConfig_Load_RejectsUnknownAuditSink(t *testing.T) {
	t.Setenv("AUDIT_SINK", "s3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=config.Load")
}

func TestConfig_GetAIBackoffConfig(t *testing.T) {
	cfg := Config{AppEnv: "test", AIBackoffMaxElapsedTime: time.Minute}
	maxElapsed, initial, maxInterval, mult := cfg.GetAIBackoffConfig()
	assert.Equal(t, 5*time.Second, maxElapsed)
	assert.Equal(t, 100*time.Millisecond, initial)
	assert.Equal(t, time.Second, maxInterval)
	assert.Equal(t, 2.0, mult)

	cfg.AppEnv = "prod"
	maxElapsed, _, _, _ = cfg.GetAIBackoffConfig()
	assert.Equal(t, time.Minute, maxElapsed)
}
