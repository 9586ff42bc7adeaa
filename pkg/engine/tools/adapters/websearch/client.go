// Package websearch is the HTTP client for the web-search backend used
// by the research tools.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
)

const defaultBaseURL = "https://api.tavily.com"

type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if !c.Configured() {
		return nil, engine.NewAuthError("web search api key is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, engine.NewInvalidInputErrorWithParam("query is required", "query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": "basic",
		"max_results":  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engine.NewUpstreamError("web_search", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("web_search", resp); err != nil {
		return nil, err
	}

	var decoded struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hits := make([]Hit, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return hits, nil
}

// classifyStatus folds a non-200 status into the engine taxonomy so
// the executor retries only what is worth retrying.
func classifyStatus(upstream string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return engine.NewAuthError(upstream + " rejected the api key")
	case resp.StatusCode == http.StatusNotFound:
		return engine.NewNotFoundError(upstream + " resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return engine.NewRateLimitError(upstream + " rate limit exceeded")
	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return engine.NewUpstreamError(upstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return engine.NewInvalidInputError(fmt.Sprintf("%s error (status %d): %s", upstream, resp.StatusCode, strings.TrimSpace(string(b))))
	}
}
