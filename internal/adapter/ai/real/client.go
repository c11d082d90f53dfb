// Package real implements the OpenAI-compatible embeddings and chat client.
package real

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

const provider = "openai"

// Client implements domain.AIClient against an OpenAI-compatible API.
type Client struct {
	cfg     config.Config
	chat    endpoint
	embed   endpoint
	breaker *obsctx.CircuitBreaker
	counter *tokencount.Counter
}

// endpoint pairs a transport with the per-attempt deadline it runs under.
// The http.Client timeout is the hard ceiling.
type endpoint struct {
	hc      *http.Client
	timeout *obsctx.AdaptiveTimeout
}

// New constructs a client with traced transports and one breaker shared by both endpoints.
func New(cfg config.Config) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "ai " + r.Method + " " + r.URL.Path
		}),
	)
	return &Client{
		cfg:     cfg,
		chat: endpoint{
			hc:      &http.Client{Timeout: 90 * time.Second, Transport: transport},
			timeout: obsctx.NewAdaptiveTimeout("ai-chat", 60*time.Second, 20*time.Second, 90*time.Second),
		},
		embed: endpoint{
			hc:      &http.Client{Timeout: 45 * time.Second, Transport: transport},
			timeout: obsctx.NewAdaptiveTimeout("ai-embed", 30*time.Second, 10*time.Second, 45*time.Second),
		},
		breaker: obsctx.NewCircuitBreaker("ai-provider", cfg.AIBreakerMaxFailures, cfg.AIBreakerTimeout),
		counter: tokencount.DefaultCounter,
	}
}

// Model names the chat model.
func (c *Client) Model() string { return c.cfg.ModelName }

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime, expo.InitialInterval, expo.MaxInterval, expo.Multiplier = c.cfg.GetAIBackoffConfig()
	return expo
}

// statusError carries the provider status so callers can map it to a domain error.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d: %s", e.status, e.body) }

// post sends body to path with retries. 429 and 5xx are retried, other 4xx are permanent.
func (c *Client) post(ctx context.Context, ep endpoint, op, path string, body []byte, out any) error {
	if !c.breaker.CanExecute() {
		obsctx.LoggerFromContext(ctx).Warn("ai provider circuit open", slog.String("op", op))
		return fmt.Errorf("%w: circuit open", domain.ErrUpstreamTimeout)
	}
	url := strings.TrimRight(c.cfg.OpenAIBaseURL, "/") + path

	attempt := func() error {
		start := time.Now()
		attemptCtx, cancel := ep.timeout.WithTimeout(ctx)
		defer cancel()
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := ep.hc.Do(req)
		observability.AIRequestsTotal.WithLabelValues(provider, op).Inc()
		observability.AIRequestDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				ep.timeout.RecordTimeout()
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := string(raw)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			serr := &statusError{status: resp.StatusCode, body: snippet}
			slog.Warn("ai provider non-2xx",
				slog.String("op", op),
				slog.Int("status", resp.StatusCode),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
				slog.String("body", snippet))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		ep.timeout.RecordSuccess(time.Since(start))
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode %s response: %v", domain.ErrUpstreamSchema, op, err))
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(c.backoffConfig(), ctx))
	if err == nil {
		c.breaker.RecordSuccess()
		return nil
	}

	var serr *statusError
	switch {
	case errors.Is(err, domain.ErrUpstreamSchema):
		c.breaker.RecordSuccess()
		return err
	case errors.As(err, &serr) && serr.status == http.StatusTooManyRequests:
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
	case errors.As(err, &serr) && serr.status < 500:
		// the provider is up; the request itself was rejected
		c.breaker.RecordSuccess()
		return fmt.Errorf("op=ai.%s: %w", op, err)
	default:
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
}

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrEmbeddingUnavailable)
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = c.counter.Truncate(t, c.cfg.EmbeddingsModel, c.cfg.EmbedMaxTokens)
	}
	b, _ := json.Marshal(map[string]any{"model": c.cfg.EmbeddingsModel, "input": input})

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, c.embed, "embed", "/embeddings", b, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrUpstreamSchema, len(texts), len(out.Data))
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// ChatJSON sends one system+user exchange and returns the assistant content.
func (c *Client) ChatJSON(ctx domain.Context, req domain.ChatRequest) (string, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.ResponseMaxToken
	}
	user := c.counter.Truncate(req.User, c.cfg.ModelName, c.cfg.PromptMaxTokens)
	b, _ := json.Marshal(map[string]any{
		"model":       c.cfg.ModelName,
		"temperature": req.Temperature,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": user},
		},
	})

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, c.chat, "chat", "/chat/completions", b, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", domain.ErrUpstreamSchema)
	}
	obsctx.LoggerFromContext(ctx).Debug("ai chat completed", slog.String("model", c.cfg.ModelName), slog.Int("max_tokens", maxTokens))
	return out.Choices[0].Message.Content, nil
}
