package tools

import (
	"context"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/fetch"
)

const urlPrompt = "Summarize this web page for a sales conversation: what the company or product does, who it serves, pricing signals, and anything relevant to qualification."

// URLAnalysisTool fetches a page the lead shared and summarizes it.
type URLAnalysisTool struct {
	fetcher  *fetch.Client
	analyzer Analyzer
}

func NewURLAnalysisTool(fetcher *fetch.Client, analyzer Analyzer) *URLAnalysisTool {
	if fetcher == nil {
		fetcher = fetch.NewClient(nil)
	}
	return &URLAnalysisTool{fetcher: fetcher, analyzer: analyzer}
}

func (t *URLAnalysisTool) Name() string { return ToolURLAnalysis }

func (t *URLAnalysisTool) Description() string {
	return "Fetch a shared link and summarize its sales-relevant content."
}

func (t *URLAnalysisTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.analyzer == nil {
		return nil, engine.NewAuthError("url_analysis is not configured")
	}
	rawURL, _ := input["url"].(string)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, engine.NewInvalidInputErrorWithParam("url is required", "url")
	}

	page, err := t.fetcher.Page(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	summary, err := t.analyzer.AnalyzeText(ctx, urlPrompt, page)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": rawURL, "summary": summary}, nil
}
