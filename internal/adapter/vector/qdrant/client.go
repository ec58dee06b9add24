// Package qdrant provides a minimal Qdrant HTTP client used as the vector
// index. Logical point ids are caller-assigned strings ("resume-<id>",
// "job-<id>"); Qdrant itself only accepts UUID or integer ids, so the client
// maps each logical id to a deterministic UUID and keeps the logical id in
// the point payload.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/talentsift/internal/domain"
)

const maxTopK = 100

// Client is a minimal Qdrant HTTP client used by the app.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

// New constructs a Qdrant client for one collection with baseURL and optional
// apiKey.
func New(baseURL, apiKey, collection string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// pointUUID derives the stable Qdrant point id for a logical id.
func pointUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// EnsureCollection creates the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int, distance string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection), nil)
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ensure collection: %v", domain.ErrIndex, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	payload := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": distance},
	}
	b, _ := json.Marshal(payload)
	req, _ = http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ensure collection: %v", domain.ErrIndex, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ensure create status %d", domain.ErrIndex, resp.StatusCode)
	}
	return nil
}

// Upsert inserts or overwrites the point for a logical id.
func (c *Client) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if id == "" {
		return fmt.Errorf("%w: empty point id", domain.ErrInvalidArgument)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidArgument)
	}
	pt := map[string]any{
		"id":     pointUUID(id),
		"vector": vector,
	}
	pl := map[string]any{"id": id}
	for k, v := range payload {
		if k != "id" {
			pl[k] = v
		}
	}
	pt["payload"] = pl
	body := map[string]any{"points": []map[string]any{pt}}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", domain.ErrIndex, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: upsert status 429", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upsert status %d", domain.ErrIndex, resp.StatusCode)
	}
	return nil
}

// Query returns the top-k nearest points for a vector, descending by score.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be >= 1", domain.ErrInvalidArgument)
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	body := map[string]any{"vector": vector, "limit": topK, "with_payload": true}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrIndex, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: search status 429", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: search status %d", domain.ErrIndex, resp.StatusCode)
	}
	var out struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrIndex, err)
	}
	matches := make([]domain.Match, 0, len(out.Result))
	for _, r := range out.Result {
		id, _ := r.Payload["id"].(string)
		matches = append(matches, domain.Match{ID: id, Score: r.Score, Payload: r.Payload})
	}
	// The server already orders and limits results; do not trust it. Callers
	// depend on descending scores and at most topK entries.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes the point for a logical id. Deleting a missing id succeeds.
func (c *Client) Delete(ctx context.Context, id string) error {
	body := map[string]any{"points": []string{pointUUID(id)}}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection), bytes.NewReader(b))
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", domain.ErrIndex, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: delete status %d", domain.ErrIndex, resp.StatusCode)
	}
	return nil
}

// Healthz pings the Qdrant root endpoint, for readiness checks.
func (c *Client) Healthz(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant healthz status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}
