package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// ExitKind classifies whether a lead is trying to leave the
// conversation, and how.
type ExitKind string

const (
	// ExitBooking means the lead asked to schedule a human call.
	ExitBooking ExitKind = "BOOKING"
	// ExitFrustration means the lead is annoyed and disengaging.
	ExitFrustration ExitKind = "FRUSTRATION"
	// ExitMinimal means the lead replies with low-effort fillers.
	ExitMinimal ExitKind = "MINIMAL"
	// ExitContinue is the neutral default: keep the conversation going.
	ExitContinue ExitKind = "CONTINUE"
)

// ExitDetection is one exit classification outcome.
type ExitDetection struct {
	Kind       ExitKind `json:"kind"`
	Confidence float64  `json:"confidence"`
}

var (
	bookingRe = regexp.MustCompile(`(?i)\b(book (?:a )?(?:call|meeting|demo)|schedule (?:a )?(?:call|meeting|demo)|talk to (?:a )?(?:human|person|sales)|set up (?:a )?(?:call|meeting))\b`)

	frustrationRe = regexp.MustCompile(`(?i)\b(ridiculous|useless|waste of time|this is(?:n'?t| not) working|stop (?:it|this)|annoying|frustrat\w*|pointless)\b`)

	minimalFillers = map[string]struct{}{
		"ok": {}, "okay": {}, "k": {}, "kk": {}, "sure": {}, "fine": {},
		"yes": {}, "no": {}, "yeah": {}, "yep": {}, "nope": {}, "hm": {},
		"hmm": {}, "uh huh": {}, "mhm": {}, "right": {}, "cool": {},
	}
)

// DetectExit classifies exit intent for one user message. Ordering
// matters: an explicit booking request wins over frustration wording,
// and both win over the minimal-reply heuristic.
func DetectExit(text string) ExitDetection {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ExitDetection{Kind: ExitContinue}
	}

	if bookingRe.MatchString(trimmed) {
		return ExitDetection{Kind: ExitBooking, Confidence: 0.85}
	}
	if frustrationRe.MatchString(trimmed) {
		return ExitDetection{Kind: ExitFrustration, Confidence: 0.8}
	}
	if isMinimalReply(trimmed) {
		return ExitDetection{Kind: ExitMinimal, Confidence: 0.6}
	}
	return ExitDetection{Kind: ExitContinue}
}

// isMinimalReply matches short filler-only replies ("ok", "sure.").
func isMinimalReply(text string) bool {
	cleaned := strings.TrimRightFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	if cleaned == "" {
		return false
	}
	if _, ok := minimalFillers[cleaned]; ok {
		return true
	}
	// Two-word fillers like "ok thanks" still count as minimal.
	fields := strings.Fields(cleaned)
	if len(fields) == 2 {
		_, first := minimalFillers[fields[0]]
		return first && (fields[1] == "thanks" || fields[1] == "thx")
	}
	return false
}
