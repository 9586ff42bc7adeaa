// Package fetch retrieves web pages for the URL-analysis tool and
// reduces them to plain text the analysis model can digest.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
)

const defaultMaxBodyBytes = 256 * 1024

type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:   httpClient,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// Page fetches rawURL and returns its visible text content. Markup,
// scripts, and styles are stripped; the body read is capped so a huge
// page cannot blow up an analysis call.
func (c *Client) Page(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", engine.NewInvalidInputErrorWithParam("url must be absolute http(s)", "url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", engine.NewUpstreamError("url_analysis", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return "", engine.NewUpstreamError("url_analysis", err)
	}

	text := stripMarkup(string(body))
	if text == "" {
		return "", engine.NewUpstreamError("url_analysis", fmt.Errorf("page has no readable text"))
	}
	return text, nil
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return engine.NewAuthError("url_analysis was refused by the page")
	case resp.StatusCode == http.StatusNotFound:
		return engine.NewNotFoundError("url_analysis page not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return engine.NewRateLimitError("url_analysis rate limited by the page")
	case resp.StatusCode >= 500:
		return engine.NewUpstreamError("url_analysis", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return engine.NewInvalidInputError(fmt.Sprintf("url_analysis got status %d", resp.StatusCode))
	}
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<(script|style|noscript)\b[^>]*>.*?</(script|style|noscript)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

func stripMarkup(html string) string {
	text := scriptBlockRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
