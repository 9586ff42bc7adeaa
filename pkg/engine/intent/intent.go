// Package intent holds the heuristic text classifiers that feed the
// live session loop: conversation intent (which product track the lead
// is asking about) and exit intent (whether the lead wants to wrap up).
//
// Both are best-effort keyword/regex classifiers. They return a
// confidence score, degrade to a neutral default when nothing matches,
// and never block or fail a turn.
package intent

import (
	"regexp"
	"strings"
)

// Type is the detected conversation intent.
type Type string

const (
	TypeConsulting Type = "consulting"
	TypeWorkshop   Type = "workshop"
	TypeOther      Type = "other"
)

// Detection is one classification outcome.
type Detection struct {
	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`
	// Objection is set when the text carries a pricing or timing
	// objection alongside the intent.
	Objection string `json:"objection,omitempty"`
}

var (
	consultingRe = regexp.MustCompile(`(?i)\b(consult(?:ing|ant)?|advis(?:e|ory)|engagement|retainer|audit|assessment|strategy session)\b`)
	workshopRe   = regexp.MustCompile(`(?i)\b(workshop|training|bootcamp|hands.?on session|team session|masterclass)\b`)

	pricingObjectionRe = regexp.MustCompile(`(?i)\b(too expensive|can'?t afford|over budget|pricey|cheaper|cost too much|price is)\b`)
	timingObjectionRe  = regexp.MustCompile(`(?i)\b(not (?:the )?right time|too busy|next year|maybe later|circle back|bad timing)\b`)
)

// Detect classifies a user message. Unmatched text yields TypeOther at
// zero confidence rather than an error.
func Detect(text string) Detection {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Detection{Type: TypeOther}
	}

	d := Detection{Type: TypeOther}
	consulting := len(consultingRe.FindAllString(trimmed, -1))
	workshop := len(workshopRe.FindAllString(trimmed, -1))
	switch {
	case consulting > workshop:
		d.Type = TypeConsulting
		d.Confidence = confidenceFor(consulting)
	case workshop > 0:
		d.Type = TypeWorkshop
		d.Confidence = confidenceFor(workshop)
	}

	switch {
	case pricingObjectionRe.MatchString(trimmed):
		d.Objection = "pricing"
	case timingObjectionRe.MatchString(trimmed):
		d.Objection = "timing"
	}
	return d
}

// confidenceFor maps match counts onto a coarse score. One hit is a
// weak signal, three or more is as confident as a keyword match gets.
func confidenceFor(hits int) float64 {
	switch {
	case hits >= 3:
		return 0.9
	case hits == 2:
		return 0.75
	case hits == 1:
		return 0.6
	default:
		return 0
	}
}
