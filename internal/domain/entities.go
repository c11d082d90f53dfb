package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrFeatureDisabled      = errors.New("feature disabled")
	ErrRateLimited          = errors.New("rate limited")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrUpstreamTimeout      = errors.New("upstream timeout")
	ErrUpstreamRateLimit    = errors.New("upstream rate limit")
	ErrUpstreamSchema       = errors.New("upstream schema invalid")
	ErrInternal             = errors.New("internal error")
)

// ErrInvalidInput marks malformed matching input. It is also an ErrInvalidArgument.
var ErrInvalidInput = fmt.Errorf("invalid input: %w", ErrInvalidArgument)

// RateLimitError is returned when a conference bucket is exhausted.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

//go:generate mockery --name=Embedder --with-expecter --filename=embedder_mock.go
//go:generate mockery --name=LLM --with-expecter --filename=llm_mock.go
//go:generate mockery --name=FlagRepository --with-expecter --filename=flag_repository_mock.go
//go:generate mockery --name=AuditRepository --with-expecter --filename=audit_repository_mock.go

// Embedder (port)
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// ChatRequest is a single JSON-mode completion request.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// LLM (port)
type LLM interface {
	// ChatJSON returns the raw assistant message; callers decode it.
	ChatJSON(ctx Context, req ChatRequest) (string, error)
	// Model names the chat model used for audit records.
	Model() string
}

// AIClient bundles both provider capabilities.
type AIClient interface {
	Embedder
	LLM
}

// TopicExtractor (port). Best effort; never fails.
type TopicExtractor interface {
	ExtractCommonTopics(ctx Context, abstractSnippet string, expertise []string) []string
}

// FlagRepository persists per-conference feature toggles.
type FlagRepository interface {
	Get(ctx Context, conferenceID, feature string) (bool, error)
	Upsert(ctx Context, f FeatureFlag) error
	ListByConference(ctx Context, conferenceID string) ([]FeatureFlag, error)
}

// AuditRepository persists and queries audit entries.
type AuditRepository interface {
	Insert(ctx Context, e AuditEntry) error
	Query(ctx Context, q AuditQuery) ([]AuditEntry, error)
	UsageStats(ctx Context, q UsageQuery) (UsageStats, error)
}

// AuditSink accepts finished audit entries (direct insert or event publish).
type AuditSink interface {
	Write(ctx Context, e AuditEntry) error
}

// DocumentStore keeps short-lived JSON documents (drafts, synopses).
type DocumentStore interface {
	PutJSON(ctx Context, key string, v any, ttlSeconds int64) error
	// GetJSON returns ErrNotFound when the key is absent.
	GetJSON(ctx Context, key string, dst any) error
}

// Context is an alias so ports read naturally without importing context everywhere.
type Context = context.Context
