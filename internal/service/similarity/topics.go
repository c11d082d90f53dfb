package similarity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/llmjson"
)

// LLMTopicExtractor asks the chat model for research topics shared by a paper
// and a reviewer. Any failure degrades to an empty list.
type LLMTopicExtractor struct {
	llm       domain.LLM
	prompts   *config.Prompts
	maxTopics int
}

// NewLLMTopicExtractor builds an extractor returning at most maxTopics items.
func NewLLMTopicExtractor(llm domain.LLM, prompts *config.Prompts, maxTopics int) *LLMTopicExtractor {
	if maxTopics <= 0 {
		maxTopics = 5
	}
	return &LLMTopicExtractor{llm: llm, prompts: prompts, maxTopics: maxTopics}
}

type topicsPrompt struct {
	Abstract  string
	Expertise []string
}

// ExtractCommonTopics implements domain.TopicExtractor.
func (e *LLMTopicExtractor) ExtractCommonTopics(ctx context.Context, abstractSnippet string, expertise []string) []string {
	lg := obsctx.LoggerFromContext(ctx)
	p, err := e.prompts.Render(config.PromptTopics, topicsPrompt{Abstract: abstractSnippet, Expertise: expertise})
	if err != nil {
		lg.Error("topic prompt render failed", slog.Any("error", err))
		observability.TopicExtractionDegraded()
		return []string{}
	}
	raw, err := e.llm.ChatJSON(ctx, domain.ChatRequest{
		System:      p.System,
		User:        p.User,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		lg.Warn("topic extraction degraded", slog.String("reason", "provider_error"), slog.Any("error", err))
		observability.TopicExtractionDegraded()
		return []string{}
	}

	res := llmjson.Decode[[]any](raw)
	if !res.OK() {
		lg.Warn("topic extraction degraded", slog.String("reason", res.Status.String()), slog.Any("error", res.Err))
		observability.TopicExtractionDegraded()
		return []string{}
	}
	out := make([]string, 0, e.maxTopics)
	for _, item := range res.Value {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == e.maxTopics {
			break
		}
	}
	return out
}
