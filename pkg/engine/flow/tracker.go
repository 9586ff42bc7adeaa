// Package flow tracks discovery-topic coverage across a sales
// conversation. The tracker is a pure derivation over the message
// stream: same inputs, same output, no hidden state.
package flow

import (
	"regexp"
	"strings"
	"time"
)

// Category is one of the six fixed discovery topics.
type Category string

const (
	CategoryGoals     Category = "goals"
	CategoryPain      Category = "pain"
	CategoryData      Category = "data"
	CategoryReadiness Category = "readiness"
	CategoryBudget    Category = "budget"
	CategorySuccess   Category = "success"
)

// Categories lists all topics in canonical order.
var Categories = []Category{
	CategoryGoals,
	CategoryPain,
	CategoryData,
	CategoryReadiness,
	CategoryBudget,
	CategorySuccess,
}

// recapThreshold is how many covered categories trigger a recap offer.
const recapThreshold = 4

// Insight records where a category was first evidenced.
type Insight struct {
	FirstTurnIndex int       `json:"first_turn_index"`
	FirstMessageID string    `json:"first_message_id"`
	FirstTimestamp time.Time `json:"first_timestamp"`
}

// UserMessage is one inbound user turn.
type UserMessage struct {
	ID        string
	Text      string
	Timestamp time.Time
}

// State is the per-session coverage tracker. Once a category is marked
// covered it is never uncovered; CoverageOrder records discovery order
// and always has exactly as many entries as there are covered
// categories.
type State struct {
	Covered          map[Category]bool       `json:"covered"`
	Evidence         map[Category][]string   `json:"evidence"`
	Insights         map[Category]Insight    `json:"insights"`
	CoverageOrder    []Category              `json:"coverage_order"`
	TotalUserTurns   int                     `json:"total_user_turns"`
	ShouldOfferRecap bool                    `json:"should_offer_recap"`
	RecapOffered     bool                    `json:"recap_offered"`
	LastResearchTurn int                     `json:"last_research_turn"`
	processedIDs     map[string]struct{}
}

// NewState returns an empty coverage state.
func NewState() State {
	return State{
		Covered:          make(map[Category]bool, len(Categories)),
		Evidence:         make(map[Category][]string, len(Categories)),
		Insights:         make(map[Category]Insight, len(Categories)),
		LastResearchTurn: -1,
		processedIDs:     make(map[string]struct{}),
	}
}

// CoveredCount returns how many categories are covered.
func (s State) CoveredCount() int {
	n := 0
	for _, covered := range s.Covered {
		if covered {
			n++
		}
	}
	return n
}

func (s State) clone() State {
	out := s
	out.Covered = make(map[Category]bool, len(s.Covered))
	for k, v := range s.Covered {
		out.Covered[k] = v
	}
	out.Evidence = make(map[Category][]string, len(s.Evidence))
	for k, v := range s.Evidence {
		out.Evidence[k] = append([]string(nil), v...)
	}
	out.Insights = make(map[Category]Insight, len(s.Insights))
	for k, v := range s.Insights {
		out.Insights[k] = v
	}
	out.CoverageOrder = append([]Category(nil), s.CoverageOrder...)
	out.processedIDs = make(map[string]struct{}, len(s.processedIDs))
	for k := range s.processedIDs {
		out.processedIDs[k] = struct{}{}
	}
	return out
}

// Tracker derives coverage state from user turns using keyword
// heuristics. Best-effort classification; detectors are deliberately
// simple and tested only on unambiguous phrasing.
type Tracker struct {
	detectors map[Category]*regexp.Regexp
}

func NewTracker() *Tracker {
	return &Tracker{detectors: map[Category]*regexp.Regexp{
		CategoryGoals:     regexp.MustCompile(`(?i)\b(goal|objective|aim(?:ing)?|trying to|we want to|looking to|mission)\b`),
		CategoryPain:      regexp.MustCompile(`(?i)\b(pain|problem|struggl\w*|frustrat\w*|bottleneck|blocker|challenge|issue)\b`),
		CategoryData:      regexp.MustCompile(`(?i)\b(data|spreadsheet|crm|report(?:s|ing)?|metrics|dashboards?|numbers)\b`),
		CategoryReadiness: regexp.MustCompile(`(?i)\b(timeline|ready|kick\s*off|start(?:ing)? (?:next|this)|next quarter|q[1-4]|go.?live)\b`),
		CategoryBudget:    regexp.MustCompile(`(?i)\b(budget|cost|price|pricing|spend|invest(?:ment)?|afford)\b`),
		CategorySuccess:   regexp.MustCompile(`(?i)\b(success|outcome|kpis?|measure|roi|win|north star)\b`),
	}}
}

// Observe folds one user turn into the state and returns the updated
// copy. Calling twice with the same message id is a no-op: the state is
// returned unchanged and nothing is double-counted. The input state is
// never mutated.
func (t *Tracker) Observe(prev State, msg UserMessage) State {
	id := strings.TrimSpace(msg.ID)
	if id == "" {
		return prev
	}
	if prev.processedIDs != nil {
		if _, seen := prev.processedIDs[id]; seen {
			return prev
		}
	}

	next := prev.clone()
	if next.processedIDs == nil {
		next.processedIDs = make(map[string]struct{})
	}
	next.processedIDs[id] = struct{}{}
	next.TotalUserTurns++
	turnIndex := next.TotalUserTurns - 1

	text := strings.TrimSpace(msg.Text)
	if text != "" {
		for _, category := range Categories {
			re := t.detectors[category]
			if re == nil || !re.MatchString(text) {
				continue
			}
			if !next.Covered[category] {
				next.Covered[category] = true
				next.CoverageOrder = append(next.CoverageOrder, category)
				next.Insights[category] = Insight{
					FirstTurnIndex: turnIndex,
					FirstMessageID: id,
					FirstTimestamp: msg.Timestamp,
				}
			}
			next.Evidence[category] = append(next.Evidence[category], text)
		}
	}

	if !next.RecapOffered && next.CoveredCount() >= recapThreshold {
		next.ShouldOfferRecap = true
	}
	return next
}

// MarkRecapOffered records that the recap was offered so it is not
// suggested again this session.
func (t *Tracker) MarkRecapOffered(prev State) State {
	next := prev.clone()
	next.RecapOffered = true
	next.ShouldOfferRecap = false
	return next
}

// MarkResearchTurn records the most recent turn on which background
// research ran, used to pace enrichment tool calls.
func (t *Tracker) MarkResearchTurn(prev State, turnIndex int) State {
	next := prev.clone()
	if turnIndex > next.LastResearchTurn {
		next.LastResearchTurn = turnIndex
	}
	return next
}
