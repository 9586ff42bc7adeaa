package tools

import (
	"context"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/enrich"
)

// CompanyEnrichTool resolves a company domain to a researched profile.
type CompanyEnrichTool struct {
	client *enrich.Client
}

func NewCompanyEnrichTool(client *enrich.Client) *CompanyEnrichTool {
	return &CompanyEnrichTool{client: client}
}

func (t *CompanyEnrichTool) Name() string { return ToolCompanyEnrich }

func (t *CompanyEnrichTool) Description() string {
	return "Look up company enrichment (industry, size, summary) by domain."
}

func (t *CompanyEnrichTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.client == nil || !t.client.Configured() {
		return nil, engine.NewAuthError("company_enrich is not configured")
	}
	domain, _ := input["domain"].(string)
	company, err := t.client.Company(ctx, domain)
	if err != nil {
		return nil, err
	}
	return company, nil
}

// PersonEnrichTool resolves a lead email to a researched profile.
type PersonEnrichTool struct {
	client *enrich.Client
}

func NewPersonEnrichTool(client *enrich.Client) *PersonEnrichTool {
	return &PersonEnrichTool{client: client}
}

func (t *PersonEnrichTool) Name() string { return ToolPersonEnrich }

func (t *PersonEnrichTool) Description() string {
	return "Look up person enrichment (title, seniority) by work email."
}

func (t *PersonEnrichTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.client == nil || !t.client.Configured() {
		return nil, engine.NewAuthError("person_enrich is not configured")
	}
	email, _ := input["email"].(string)
	person, err := t.client.Person(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return person, nil
}
