// Package github is the HTTP boundary to the nf-core modules repository:
// directory listings through the GitHub contents API, raw file fetches, and
// rate limit status.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultAPIBase lists directories under the nf-core modules tree.
	DefaultAPIBase = "https://api.github.com/repos/nf-core/modules/contents/modules/nf-core"

	// DefaultRawBase serves raw module files.
	DefaultRawBase = "https://raw.githubusercontent.com/nf-core/modules/master/modules/nf-core"

	// DefaultRateLimitURL reports API quota state.
	DefaultRateLimitURL = "https://api.github.com/rate_limit"
)

// Entry is one item of a GitHub contents listing.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RateLimit is the core API quota snapshot.
type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Client talks to GitHub. The base URLs are fields so tests can point the
// client at a local server.
type Client struct {
	Token        string
	APIBase      string
	RawBase      string
	RateLimitURL string
	HTTPClient   *http.Client
}

// NewClient returns a client with production endpoints. The token is
// optional; unauthenticated requests work within GitHub's lower quota.
func NewClient(token string) *Client {
	return &Client{
		Token:        token,
		APIBase:      DefaultAPIBase,
		RawBase:      DefaultRawBase,
		RateLimitURL: DefaultRateLimitURL,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// DirectoryEntries lists the contents of a directory relative to the API
// base. An empty relPath lists the base itself.
func (c *Client) DirectoryEntries(ctx context.Context, relPath string) ([]Entry, error) {
	url := c.APIBase
	if relPath != "" {
		url += "/" + relPath
	}
	body, err := c.get(ctx, url+"?per_page=100")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from GitHub API: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		// A non-list response means the path is a file, not a directory.
		return nil, nil
	}
	return entries, nil
}

// RawText fetches the content of a module file relative to the raw base.
func (c *Client) RawText(ctx context.Context, relPath string) (string, error) {
	url := c.RawBase + "/" + relPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("module file not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RateLimitStatus fetches the core API rate limit.
func (c *Client) RateLimitStatus(ctx context.Context) (RateLimit, error) {
	body, err := c.get(ctx, c.RateLimitURL)
	if err != nil {
		return RateLimit{}, fmt.Errorf("failed to fetch rate limit status: %w", err)
	}

	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return RateLimit{}, fmt.Errorf("failed to fetch rate limit status: %w", err)
	}
	return RateLimit{
		Limit:     payload.Resources.Core.Limit,
		Remaining: payload.Resources.Core.Remaining,
		ResetTime: payload.Resources.Core.Reset,
	}, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}
}
