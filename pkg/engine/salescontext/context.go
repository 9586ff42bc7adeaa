// Package salescontext holds the per-session intelligence context: the
// fact base that tool results, intent detection, and explicit lead
// corrections all write into during a live conversation.
package salescontext

import (
	"sort"
	"strings"
	"time"
)

// CompanyProfile is the researched company enrichment for a lead.
type CompanyProfile struct {
	Name     string `json:"name,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Industry string `json:"industry,omitempty"`
	Size     string `json:"size,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// PersonProfile is the researched person enrichment for a lead.
type PersonProfile struct {
	Name      string `json:"name,omitempty"`
	Title     string `json:"title,omitempty"`
	Seniority string `json:"seniority,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// IntelligenceContext is the mutable fact base for one session.
//
// Version strictly increases with every accepted write; writers must go
// through Store.UpdateWithVersionCheck, never mutate a shared instance.
type IntelligenceContext struct {
	SessionID string `json:"session_id"`

	LeadEmail string `json:"lead_email,omitempty"`
	LeadName  string `json:"lead_name,omitempty"`

	Company *CompanyProfile `json:"company,omitempty"`
	Person  *PersonProfile  `json:"person,omitempty"`

	DetectedRole   string  `json:"detected_role,omitempty"`
	RoleConfidence float64 `json:"role_confidence,omitempty"`

	CurrentObjection string `json:"current_objection,omitempty"`

	// Capabilities records which product capabilities have already been
	// demonstrated or used in this conversation, sorted and de-duplicated.
	Capabilities []string `json:"capabilities,omitempty"`

	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// New returns an empty context for a session at version zero.
func New(sessionID string) *IntelligenceContext {
	return &IntelligenceContext{SessionID: sessionID}
}

// Clone returns a deep copy. Store hands out and accepts only clones so
// concurrent readers never observe a partially applied mutation.
func (c *IntelligenceContext) Clone() *IntelligenceContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Company != nil {
		company := *c.Company
		out.Company = &company
	}
	if c.Person != nil {
		person := *c.Person
		out.Person = &person
	}
	if c.Capabilities != nil {
		out.Capabilities = append([]string(nil), c.Capabilities...)
	}
	return &out
}

// HasCapability reports whether the named capability was already used.
func (c *IntelligenceContext) HasCapability(name string) bool {
	if c == nil {
		return false
	}
	name = strings.TrimSpace(strings.ToLower(name))
	for _, cap := range c.Capabilities {
		if cap == name {
			return true
		}
	}
	return false
}

// RecordCapability marks a capability as used, keeping the set sorted.
func (c *IntelligenceContext) RecordCapability(name string) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || c.HasCapability(name) {
		return
	}
	c.Capabilities = append(c.Capabilities, name)
	sort.Strings(c.Capabilities)
}

// StaleSince reports whether the context has gone without an accepted
// write for longer than threshold. A zero threshold disables the check.
func (c *IntelligenceContext) StaleSince(now time.Time, threshold time.Duration) bool {
	if c == nil || threshold <= 0 || c.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(c.LastUpdated) > threshold
}
