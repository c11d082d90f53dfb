// Package ratelimiter implements per-conference token buckets.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Limiter charges cost tokens against key.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// BucketConfig describes one token bucket. RefillRate is tokens per second.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64
}

// Enabled reports whether the bucket limits anything.
func (c BucketConfig) Enabled() bool { return c.Capacity > 0 && c.RefillRate > 0 }

// NewBucketConfig refills capacity tokens evenly over window.
func NewBucketConfig(capacity int, window time.Duration) BucketConfig {
	if capacity <= 0 || window <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(capacity),
		RefillRate: float64(capacity) / window.Seconds(),
	}
}

// BucketStore is the subset of a pgx pool used to mirror bucket state.
type BucketStore interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedisLuaLimiter runs the bucket arithmetic atomically inside Redis and
// optionally mirrors the resulting state into Postgres.
type RedisLuaLimiter struct {
	redis    redis.Scripter
	store    BucketStore
	fallback BucketConfig
	buckets  map[string]BucketConfig
	script   *redis.Script
	mu       sync.RWMutex
}

// NewRedisLuaLimiter applies fallback to every key without an explicit bucket.
// store may be nil.
func NewRedisLuaLimiter(rdb redis.Scripter, store BucketStore, fallback BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLuaLimiter{
		redis:    rdb,
		store:    store,
		fallback: fallback,
		buckets:  map[string]BucketConfig{},
		script:   redis.NewScript(luaTokenBucketScript),
	}
}

// Lua numbers are truncated to integers on the way out, so fractional values
// travel as strings.
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1])
end
if data[2] then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
redis.call("EXPIRE", key, ttl)

return { allowed, tostring(tokens), tostring(now), tostring(retry_after) }
`

func (l *RedisLuaLimiter) config(key string) BucketConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.buckets[key]; ok {
		return cfg
	}
	return l.fallback
}

// Allow fails open: Redis errors are returned alongside allowed=true.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	cfg := l.config(key)
	if !cfg.Enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowSec := float64(time.Now().UnixNano()) / 1e9
	// keep idle buckets around for one full refill, then let them expire
	ttl := int64(float64(cfg.Capacity)/cfg.RefillRate) + 60

	res, err := l.script.Run(ctx, l.redis, []string{redisKey(key)}, cfg.Capacity, cfg.RefillRate, nowSec, cost, ttl).Slice()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, fmt.Errorf("op=ratelimiter.Allow: %w", err)
	}
	if len(res) < 4 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}

	allowed := toInt64(res[0]) == 1
	tokens := toFloat64(res[1])
	lastRefill := toFloat64(res[2])
	retryAfter := time.Duration(toFloat64(res[3]) * float64(time.Second))

	if l.store != nil {
		l.mirrorToPostgres(ctx, key, cfg, tokens, lastRefill)
	}
	return allowed, retryAfter, nil
}

func (l *RedisLuaLimiter) mirrorToPostgres(ctx context.Context, key string, cfg BucketConfig, tokens, lastRefillSec float64) {
	_, err := l.store.Exec(ctx,
		`INSERT INTO rate_limit_buckets (bucket_key, capacity, refill_rate, tokens, last_refill)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bucket_key) DO UPDATE SET
		   capacity = EXCLUDED.capacity,
		   refill_rate = EXCLUDED.refill_rate,
		   tokens = EXCLUDED.tokens,
		   last_refill = EXCLUDED.last_refill`,
		key, cfg.Capacity, cfg.RefillRate, tokens, secondsToTime(lastRefillSec),
	)
	if err != nil {
		slog.Error("failed to mirror rate limit bucket to postgres", slog.String("key", key), slog.Any("error", err))
	}
}

// WarmFromPostgres copies mirrored bucket state back into Redis, typically at start-up.
func (l *RedisLuaLimiter) WarmFromPostgres(ctx context.Context) error {
	if l == nil || l.store == nil || l.redis == nil {
		return nil
	}
	rdb, ok := l.redis.(redis.Cmdable)
	if !ok {
		return nil
	}

	rows, err := l.store.Query(ctx, `SELECT bucket_key, tokens, EXTRACT(EPOCH FROM last_refill)::float8 FROM rate_limit_buckets`)
	if err != nil {
		return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
	}
	defer rows.Close()

	warmed := 0
	for rows.Next() {
		var key string
		var tokens, lastRefillSec float64
		if err := rows.Scan(&key, &tokens, &lastRefillSec); err != nil {
			return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
		}
		err := rdb.HSet(ctx, redisKey(key),
			"tokens", strconv.FormatFloat(tokens, 'f', -1, 64),
			"last_refill", strconv.FormatFloat(lastRefillSec, 'f', -1, 64),
		).Err()
		if err != nil {
			slog.Error("failed to warm Redis bucket from postgres", slog.String("key", key), slog.Any("error", err))
			continue
		}
		warmed++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=ratelimiter.WarmFromPostgres: %w", err)
	}
	slog.Info("rate limit buckets warmed from postgres", slog.Int("count", warmed))
	return nil
}

// SetBucketConfig overrides the bucket for one key. Safe for concurrent use.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[key] = cfg
}

func redisKey(key string) string { return "rate:" + key }

func secondsToTime(sec float64) time.Time {
	whole := int64(sec)
	nsec := int64((sec - float64(whole)) * 1e9)
	if nsec < 0 {
		nsec = 0
	}
	return time.Unix(whole, nsec).UTC()
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}
