// Package rediscache keeps embeddings and short-lived JSON documents in Redis.
package rediscache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// DefaultEmbeddingTTL is how long a vector stays cached.
const DefaultEmbeddingTTL = 7 * 24 * time.Hour

// EmbeddingCache sits in front of an Embedder. Redis errors degrade to a cache miss.
type EmbeddingCache struct {
	base        domain.Embedder
	rdb         redis.Cmdable
	model       string
	ttl         time.Duration
	concurrency int
	group       singleflight.Group
}

// NewEmbeddingCache caches base's vectors under the given model name.
func NewEmbeddingCache(base domain.Embedder, rdb redis.Cmdable, model string, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{base: base, rdb: rdb, model: model, ttl: ttl, concurrency: 4}
}

// EmbeddingKey is embedding:<model>:<sha256(text)>.
func EmbeddingKey(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(h[:])
}

// Embed returns one vector per text. Blank texts are rejected.
func (c *EmbeddingCache) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: empty text cannot be embedded", domain.ErrInvalidInput)
		}
	}
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = EmbeddingKey(c.model, t)
	}
	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("embedding cache read failed", slog.Any("error", err))
		cached = make([]any, len(texts))
	}

	var misses []int
	for i := range texts {
		if vec, ok := decodeVector(cached[i]); ok {
			observability.EmbeddingCache("redis", "hit")
			out[i] = vec
			continue
		}
		observability.EmbeddingCache("redis", "miss")
		misses = append(misses, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, i := range misses {
		g.Go(func() error {
			vec, err := c.fill(gctx, keys[i], texts[i])
			if err != nil {
				return err
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fill embeds one text. Concurrent callers for the same key share one provider call.
func (c *EmbeddingCache) fill(ctx domain.Context, key, text string) ([]float32, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		vecs, err := c.base.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrUpstreamSchema, len(vecs))
		}
		b, _ := json.Marshal(vecs[0])
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			obsctx.LoggerFromContext(ctx).Warn("embedding cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func decodeVector(v any) ([]float32, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// DocumentStore implements domain.DocumentStore with JSON values.
type DocumentStore struct {
	rdb redis.Cmdable
}

// NewDocumentStore returns a store backed by rdb.
func NewDocumentStore(rdb redis.Cmdable) *DocumentStore { return &DocumentStore{rdb: rdb} }

// PutJSON stores v under key for ttlSeconds. ttlSeconds <= 0 means no expiry.
func (s *DocumentStore) PutJSON(ctx domain.Context, key string, v any, ttlSeconds int64) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("op=rediscache.PutJSON: %w", err)
	}
	if err := s.rdb.Set(ctx, key, b, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("op=rediscache.PutJSON: %w", err)
	}
	return nil
}

// GetJSON decodes the value at key into dst.
func (s *DocumentStore) GetJSON(ctx domain.Context, key string, dst any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("op=rediscache.GetJSON: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("op=rediscache.GetJSON: %w", err)
	}
	return nil
}

var (
	_ domain.Embedder      = (*EmbeddingCache)(nil)
	_ domain.DocumentStore = (*DocumentStore)(nil)
)
