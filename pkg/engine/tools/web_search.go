package tools

import (
	"context"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/websearch"
)

// Canonical tool names. The registry is a closed set: these constants
// are the only names the agent loop may reference.
const (
	ToolWebSearch        = "web_search"
	ToolCompanyEnrich    = "company_enrich"
	ToolPersonEnrich     = "person_enrich"
	ToolROICalculator    = "roi_calculator"
	ToolURLAnalysis      = "url_analysis"
	ToolDocumentAnalysis = "document_analysis"
	ToolVisionAnalysis   = "vision_analysis"
)

// WebSearchTool researches a query via the search backend.
type WebSearchTool struct {
	client *websearch.Client
}

func NewWebSearchTool(client *websearch.Client) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (t *WebSearchTool) Name() string { return ToolWebSearch }

func (t *WebSearchTool) Description() string {
	return "Search the web for recent information about a company, person, or topic."
}

func (t *WebSearchTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.client == nil || !t.client.Configured() {
		return nil, engine.NewAuthError("web_search is not configured")
	}
	query, _ := input["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, engine.NewInvalidInputErrorWithParam("query is required", "query")
	}
	maxResults := 5
	if n, ok := input["max_results"].(float64); ok && n > 0 {
		maxResults = int(n)
	}

	hits, err := t.client.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	return map[string]any{"query": query, "results": hits}, nil
}
