package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"log/slog"

	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/domain"
)

// Client implements domain.AIClient against OpenAI-compatible chat and
// embeddings endpoints.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
}

// New constructs an AI client with per-operation timeouts from config and
// OTel-instrumented transports.
func New(cfg config.Config) *Client {
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: cfg.LLMTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		embedHC: &http.Client{Timeout: cfg.EmbedTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (c *Client) getBackoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// ChatJSON calls the chat completions endpoint and returns the first choice's
// message content. 429s and 5xx responses are retried with backoff; other 4xx
// responses fail immediately.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.LLMAPIKey == "" {
		slog.Error("LLM API key missing", slog.String("provider", "llm"))
		return "", fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model":       c.cfg.LLMModel,
		"temperature": 0.2,
		"max_tokens":  maxTokens,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	rateLimited := false
	op := func() error {
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.chatHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("llm", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("llm", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			slog.Warn("ai provider rate limited", slog.String("provider", "llm"), slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("rate limited: 429")
		}
		rateLimited = false
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx", slog.String("provider", "llm"), slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.LLMModel), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx", slog.String("provider", "llm"), slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.LLMModel), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("ai provider decode error", slog.String("provider", "llm"), slog.String("op", "chat"), slog.Any("error", err))
			return err
		}
		return nil
	}
	bo := backoff.WithContext(c.getBackoffConfig(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if rateLimited {
			return "", fmt.Errorf("%w: chat completions: %v", domain.ErrRateLimited, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: chat completions: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("chat completions failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty choices from chat completions")
	}
	return out.Choices[0].Message.Content, nil
}

// embeddingValue accepts both provider shapes for a single embedding: a plain
// JSON array and an object carrying a "values" field.
type embeddingValue []float64

func (e *embeddingValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, (*[]float64)(e))
	}
	var obj struct {
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	if obj.Values == nil {
		return fmt.Errorf("embedding payload has neither array form nor values field")
	}
	*e = obj.Values
	return nil
}

// Embed returns one vector per input text. Empty or whitespace-only inputs
// are rejected before any network call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbeddingsAPIKey == "" || c.cfg.EmbeddingsModel == "" {
		slog.Error("embeddings API key or model missing", slog.String("provider", "embeddings"), slog.Bool("has_api_key", c.cfg.EmbeddingsAPIKey != ""), slog.String("model", c.cfg.EmbeddingsModel))
		return nil, fmt.Errorf("%w: EMBEDDINGS_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", domain.ErrInvalidArgument)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", domain.ErrInvalidArgument, i)
		}
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding embeddingValue `json:"embedding"`
		} `json:"data"`
	}
	rateLimited := false
	op := func() error {
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EmbeddingsBaseURL+"/embeddings", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.EmbeddingsAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("embeddings", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("embeddings", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			slog.Warn("ai provider rate limited", slog.String("provider", "embeddings"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		rateLimited = false
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx", slog.String("provider", "embeddings"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.EmbeddingsModel), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx", slog.String("provider", "embeddings"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.EmbeddingsModel), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("ai provider decode error", slog.String("provider", "embeddings"), slog.String("op", "embed"), slog.Any("error", err))
			return backoff.Permanent(fmt.Errorf("%w: malformed embeddings payload: %v", domain.ErrEmbedding, err))
		}
		return nil
	}
	bo := backoff.WithContext(c.getBackoffConfig(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if rateLimited {
			return nil, fmt.Errorf("%w: embeddings: %v", domain.ErrRateLimited, err)
		}
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embeddings: %v", domain.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: provider returned zero embeddings", domain.ErrEmbedding)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d texts", domain.ErrEmbedding, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
