// Package tokencount counts and truncates LLM input with tiktoken.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TokenUsage is recorded in audit metadata.
type TokenUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

// Counter caches one encoding per normalized model. Safe for concurrent use.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

// DefaultCounter is shared by callers that do not need their own cache.
var DefaultCounter = NewCounter()

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[name]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[name] = enc
	return enc, nil
}

// normalizeModelName strips provider prefixes and maps model families to a tiktoken name.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "gpt-4o"
	case strings.HasPrefix(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	case strings.HasPrefix(model, "text-embedding"):
		return "text-embedding-ada-002"
	default:
		// cl100k_base is a close enough approximation for other families
		return "gpt-4"
	}
}

// CountTokens counts the number of tokens in a text string for a given model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountChatTokens includes the per-message framing of OpenAI-compatible chat APIs.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	const perMessage = 4
	n := perMessage + len(enc.Encode(systemPrompt, nil, nil))
	n += perMessage + len(enc.Encode(userPrompt, nil, nil))
	return n + 3, nil
}

// Truncate returns text cut to at most maxTokens tokens. maxTokens <= 0 disables truncation.
// When no encoding is available it falls back to roughly four runes per token.
func (c *Counter) Truncate(text, model string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	enc, err := c.encoding(model)
	if err != nil {
		r := []rune(text)
		if len(r) > maxTokens*4 {
			return string(r[:maxTokens*4])
		}
		return text
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return enc.Decode(toks[:maxTokens])
}

// Usage estimates token usage for one chat completion.
func (c *Counter) Usage(systemPrompt, userPrompt, completion, model string) TokenUsage {
	prompt, err := c.CountChatTokens(systemPrompt, userPrompt, model)
	if err != nil {
		prompt = (len(systemPrompt) + len(userPrompt)) / 4
	}
	out, err := c.CountTokens(completion, model)
	if err != nil {
		out = len(completion) / 4
	}
	return TokenUsage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out, Model: model}
}
