// Package github implements the read-only GitHub REST client used by the
// portfolio analyzer: repository listing, languages, README, and commit
// activity. A token is optional; unauthenticated calls just run into the
// lower public rate limit sooner.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"log/slog"

	"github.com/talentsift/talentsift/internal/domain"
)

const reposPerPage = 100

// Client talks to the GitHub REST v3 API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New constructs a GitHub client. timeout bounds each request.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (c *Client) get(ctx context.Context, path string, accept string) ([]byte, int, error) {
	var body []byte
	var status int
	op := func() error {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if accept == "" {
			accept = "application/vnd.github+json"
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		status = resp.StatusCode
		body = b
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("github status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
			// Primary rate limit exhausted; not worth retrying within a
			// request timeout window.
			return backoff.Permanent(fmt.Errorf("%w: github rate limit exhausted", domain.ErrRateLimited))
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("github status 429")
		}
		return nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 20 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return nil, status, err
	}
	return body, status, nil
}

// ListRepos returns all public repositories for a user, sorted by most
// recently updated, walking pagination to the end.
func (c *Client) ListRepos(ctx context.Context, user string) ([]domain.GitHubRepo, error) {
	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("%w: empty github user", domain.ErrInvalidArgument)
	}
	var all []domain.GitHubRepo
	for page := 1; ; page++ {
		path := fmt.Sprintf("/users/%s/repos?sort=updated&per_page=%d&page=%d", url.PathEscape(user), reposPerPage, page)
		body, status, err := c.get(ctx, path, "")
		if err != nil {
			return nil, fmt.Errorf("op=github.list_repos: %w", err)
		}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: github user %q", domain.ErrNotFound, user)
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("op=github.list_repos: status %d", status)
		}
		var batch []struct {
			Name        string    `json:"name"`
			FullName    string    `json:"full_name"`
			Description string    `json:"description"`
			Language    string    `json:"language"`
			Stars       int       `json:"stargazers_count"`
			Fork        bool      `json:"fork"`
			Archived    bool      `json:"archived"`
			Disabled    bool      `json:"disabled"`
			PushedAt    time.Time `json:"pushed_at"`
			Topics      []string  `json:"topics"`
			HTMLURL     string    `json:"html_url"`
		}
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("op=github.list_repos: decode: %w", err)
		}
		for _, r := range batch {
			all = append(all, domain.GitHubRepo{
				Name:        r.Name,
				FullName:    r.FullName,
				Description: r.Description,
				Language:    r.Language,
				Stars:       r.Stars,
				Fork:        r.Fork,
				Archived:    r.Archived,
				Disabled:    r.Disabled,
				PushedAt:    r.PushedAt,
				Topics:      r.Topics,
				HTMLURL:     r.HTMLURL,
			})
		}
		if len(batch) < reposPerPage {
			return all, nil
		}
	}
}

// Languages returns the byte counts per language for a repository.
func (c *Client) Languages(ctx context.Context, fullName string) (map[string]int64, error) {
	body, status, err := c.get(ctx, "/repos/"+fullName+"/languages", "")
	if err != nil {
		return nil, fmt.Errorf("op=github.languages: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: repo %q", domain.ErrNotFound, fullName)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("op=github.languages: status %d", status)
	}
	out := map[string]int64{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("op=github.languages: decode: %w", err)
	}
	return out, nil
}

// Readme returns the raw README content for a repository, or an empty string
// when the repository has none.
func (c *Client) Readme(ctx context.Context, fullName string) (string, error) {
	body, status, err := c.get(ctx, "/repos/"+fullName+"/readme", "application/vnd.github.raw+json")
	if err != nil {
		return "", fmt.Errorf("op=github.readme: %w", err)
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("op=github.readme: status %d", status)
	}
	return string(body), nil
}

// CommitActivity returns the last 52 weeks of commit totals. GitHub computes
// these statistics lazily and answers 202 until ready; that case (and any
// 404) yields an empty series rather than an error so a missing stat never
// sinks a repo analysis.
func (c *Client) CommitActivity(ctx context.Context, fullName string) ([]domain.WeeklyCommits, error) {
	body, status, err := c.get(ctx, "/repos/"+fullName+"/stats/commit_activity", "")
	if err != nil {
		return nil, fmt.Errorf("op=github.commit_activity: %w", err)
	}
	if status == http.StatusAccepted || status == http.StatusNotFound || status == http.StatusNoContent {
		slog.Debug("commit activity unavailable", slog.String("repo", fullName), slog.Int("status", status))
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("op=github.commit_activity: status %d", status)
	}
	var weeks []struct {
		Week  int64 `json:"week"`
		Total int   `json:"total"`
	}
	if err := json.Unmarshal(body, &weeks); err != nil {
		return nil, fmt.Errorf("op=github.commit_activity: decode: %w", err)
	}
	out := make([]domain.WeeklyCommits, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, domain.WeeklyCommits{Week: time.Unix(w.Week, 0).UTC(), Total: w.Total})
	}
	return out, nil
}
