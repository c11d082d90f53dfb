package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// TokenCounter estimates token usage for audit metadata.
type TokenCounter interface {
	Usage(systemPrompt, userPrompt, completion, model string) tokencount.TokenUsage
}

// Assistant is the shared plumbing of the feature services: gate, render, call, audit.
type Assistant struct {
	LLM     domain.LLM
	Prompts *config.Prompts
	Guard   Guard
	Audit   *Auditor
	Tokens  TokenCounter
}

// Caller identifies who asked and for which conference.
type Caller struct {
	ConferenceID string
	UserID       string
}

// exchange is one completed LLM round trip.
type exchange struct {
	prompt  config.RenderedPrompt
	raw     string
	latency time.Duration
}

// ask renders prompt name with data and sends it to the model.
func (a *Assistant) ask(ctx context.Context, name string, data any) (exchange, error) {
	p, err := a.Prompts.Render(name, data)
	if err != nil {
		return exchange{}, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	start := time.Now()
	raw, err := a.LLM.ChatJSON(ctx, domain.ChatRequest{
		System:      p.System,
		User:        p.User,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	latency := time.Since(start)
	if err != nil {
		obsctx.LoggerFromContext(ctx).Error("llm call failed",
			slog.String("prompt", name), slog.Duration("latency", latency), slog.Any("error", err))
		return exchange{}, err
	}
	return exchange{prompt: p, raw: raw, latency: latency}, nil
}

// record audits an exchange with latency and token usage in metadata.
func (a *Assistant) record(ctx context.Context, c Caller, feature, action string, ex exchange, accepted *bool, extra map[string]any) string {
	meta := map[string]any{"latency_ms": ex.latency.Milliseconds()}
	if a.Tokens != nil {
		u := a.Tokens.Usage(ex.prompt.System, ex.prompt.User, ex.raw, a.LLM.Model())
		meta["prompt_tokens"] = u.PromptTokens
		meta["completion_tokens"] = u.CompletionTokens
	}
	for k, v := range extra {
		meta[k] = v
	}
	return a.Audit.Record(ctx, AuditRecord{
		ConferenceID: c.ConferenceID,
		UserID:       c.UserID,
		Feature:      feature,
		Action:       action,
		System:       ex.prompt.System,
		Prompt:       ex.prompt.User,
		ModelID:      a.LLM.Model(),
		Output:       ex.raw,
		Accepted:     accepted,
		Metadata:     meta,
	})
}

func normalizeLanguage(lang string) (string, error) {
	switch lang {
	case "":
		return "en", nil
	case "en", "vi":
		return lang, nil
	default:
		return "", fmt.Errorf("%w: language must be en or vi", domain.ErrInvalidArgument)
	}
}

func boolPtr(b bool) *bool { return &b }
