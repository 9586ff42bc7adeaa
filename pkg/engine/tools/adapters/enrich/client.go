// Package enrich is the HTTP client for the company/person enrichment
// backend that feeds the intelligence context.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
)

const defaultBaseURL = "https://enrich.pitchline.io"

// Company is the enrichment payload for a company domain.
type Company struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Industry string `json:"industry"`
	Size     string `json:"size"`
	Summary  string `json:"summary"`
}

// Person is the enrichment payload for a work email.
type Person struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Seniority string `json:"seniority"`
	LinkedIn  string `json:"linkedin"`
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

// Company looks up enrichment for a company domain.
func (c *Client) Company(ctx context.Context, domain string) (*Company, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return nil, engine.NewInvalidInputErrorWithParam("domain is required", "domain")
	}
	var out Company
	if err := c.get(ctx, "/v1/companies", url.Values{"domain": {domain}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Person looks up enrichment for a lead email.
func (c *Client) Person(ctx context.Context, email string) (*Person, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, engine.NewInvalidInputErrorWithParam("a valid email is required", "email")
	}
	var out Person
	if err := c.get(ctx, "/v1/people", url.Values{"email": {email}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if !c.Configured() {
		return engine.NewAuthError("enrichment api key is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.NewUpstreamError("enrich", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return engine.NewAuthError("enrich rejected the api key")
	case resp.StatusCode == http.StatusNotFound:
		return engine.NewNotFoundError("enrich has no record for this lookup")
	case resp.StatusCode == http.StatusTooManyRequests:
		return engine.NewRateLimitError("enrich rate limit exceeded")
	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return engine.NewUpstreamError("enrich", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return engine.NewInvalidInputError(fmt.Sprintf("enrich error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
