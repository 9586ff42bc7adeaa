// Package suggest ranks the next-best tool or action for the agent
// loop. Suggest is a pure function of the intelligence context and the
// detected intent: identical inputs always produce identical output,
// which is what makes the ranking testable.
package suggest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine/intent"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
)

// ActionKind says what accepting a suggestion does.
type ActionKind string

const (
	ActionRunTool    ActionKind = "run_tool"
	ActionShareAsset ActionKind = "share_asset"
	ActionOffer      ActionKind = "offer"
)

// Suggestion is one ranked recommendation. Ephemeral: recomputed per
// request, never persisted.
type Suggestion struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Capability string         `json:"capability"`
	Action     ActionKind     `json:"action"`
	Payload    map[string]any `json:"payload,omitempty"`
	Priority   int            `json:"priority"`
}

// maxSuggestions caps the returned slice.
const maxSuggestions = 3

type candidate struct {
	s     Suggestion
	score int
	order int
}

var (
	seniorityRe = regexp.MustCompile(`(?i)\b(ceo|cto|cfo|coo|cio|chief|vp|vice president|founder|head of|director)\b`)
	regulatedRe = regexp.MustCompile(`(?i)\b(health(?:care)?|hipaa|bank(?:ing)?|finance|financial|insurance|pharma\w*|government|gdpr|compliance)\b`)
)

var pools = map[intent.Type][]Suggestion{
	intent.TypeConsulting: {
		{ID: "sg_audit", Label: "Run a capability audit", Capability: "audit", Action: ActionRunTool, Priority: 50},
		{ID: "sg_roi", Label: "Calculate projected ROI", Capability: "roi", Action: ActionRunTool, Priority: 45},
		{ID: "sg_case_studies", Label: "Share relevant case studies", Capability: "case_studies", Action: ActionShareAsset, Priority: 40},
		{ID: "sg_compliance", Label: "Export the compliance summary", Capability: "compliance_export", Action: ActionShareAsset, Priority: 35},
		{ID: "sg_demo", Label: "Offer a tailored demo", Capability: "demo", Action: ActionOffer, Priority: 30},
	},
	intent.TypeWorkshop: {
		{ID: "sg_workshop_outline", Label: "Draft a workshop outline", Capability: "workshop_outline", Action: ActionRunTool, Priority: 50},
		{ID: "sg_case_studies", Label: "Share relevant case studies", Capability: "case_studies", Action: ActionShareAsset, Priority: 45},
		{ID: "sg_roi", Label: "Calculate projected ROI", Capability: "roi", Action: ActionRunTool, Priority: 40},
		{ID: "sg_demo", Label: "Offer a tailored demo", Capability: "demo", Action: ActionOffer, Priority: 35},
	},
	intent.TypeOther: {
		{ID: "sg_demo", Label: "Offer a tailored demo", Capability: "demo", Action: ActionOffer, Priority: 50},
		{ID: "sg_case_studies", Label: "Share relevant case studies", Capability: "case_studies", Action: ActionShareAsset, Priority: 45},
		{ID: "sg_research", Label: "Research the lead's company", Capability: "web_research", Action: ActionRunTool, Priority: 40},
		{ID: "sg_roi", Label: "Calculate projected ROI", Capability: "roi", Action: ActionRunTool, Priority: 35},
	},
}

// memoSuggestion is injected, once, when the lead raises a pricing or
// timing objection. It outranks the regular pool.
var memoSuggestion = Suggestion{
	ID:         "sg_exec_memo",
	Label:      "Send an executive memo addressing the objection",
	Capability: "executive_memo",
	Action:     ActionShareAsset,
	Priority:   90,
}

// Suggest returns at most three suggestions, highest value first.
// Capabilities already present in the context are excluded; contextual
// signals re-rank the remainder. Ties keep original pool order.
func Suggest(ctx *salescontext.IntelligenceContext, det intent.Detection) []Suggestion {
	pool, ok := pools[det.Type]
	if !ok {
		pool = pools[intent.TypeOther]
	}

	senior := hasSenioritySignal(ctx)
	regulated := hasRegulatedSignal(ctx)
	objection := currentObjection(ctx, det)

	candidates := make([]candidate, 0, len(pool)+1)
	for i, s := range pool {
		if ctx.HasCapability(s.Capability) {
			continue
		}
		score := s.Priority
		if senior && (s.Capability == "roi" || s.Capability == "audit") {
			score += 20
		}
		if regulated && s.Capability == "compliance_export" {
			score += 25
		}
		candidates = append(candidates, candidate{s: s, score: score, order: i})
	}

	if objection != "" && !ctx.HasCapability(memoSuggestion.Capability) {
		memo := memoSuggestion
		memo.Payload = map[string]any{"objection": objection}
		// Deduplicate in case a pool ever carries the memo directly.
		duplicate := false
		for _, c := range candidates {
			if c.s.Capability == memo.Capability {
				duplicate = true
				break
			}
		}
		if !duplicate {
			candidates = append(candidates, candidate{s: memo, score: memo.Priority, order: -1})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	out := make([]Suggestion, 0, maxSuggestions)
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		s := c.s
		s.Priority = c.score
		out = append(out, s)
	}
	return out
}

func hasSenioritySignal(ctx *salescontext.IntelligenceContext) bool {
	if ctx == nil {
		return false
	}
	if seniorityRe.MatchString(ctx.DetectedRole) {
		return true
	}
	return ctx.Person != nil && (seniorityRe.MatchString(ctx.Person.Title) || seniorityRe.MatchString(ctx.Person.Seniority))
}

func hasRegulatedSignal(ctx *salescontext.IntelligenceContext) bool {
	if ctx == nil || ctx.Company == nil {
		return false
	}
	return regulatedRe.MatchString(ctx.Company.Industry) || regulatedRe.MatchString(ctx.Company.Summary)
}

func currentObjection(ctx *salescontext.IntelligenceContext, det intent.Detection) string {
	if o := strings.TrimSpace(det.Objection); o == "pricing" || o == "timing" {
		return o
	}
	if ctx == nil {
		return ""
	}
	if o := strings.TrimSpace(ctx.CurrentObjection); o == "pricing" || o == "timing" {
		return o
	}
	return ""
}
