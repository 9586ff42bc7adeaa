package session

import (
	"sort"
	"sync"
	"time"
)

// pendingToolCall is one tool_call emitted to the client and awaiting
// a tool_result frame.
type pendingToolCall struct {
	Name         string
	SuggestionID string
	Capability   string
	Deadline     time.Time
}

// pendingToolCalls tracks outstanding client-side tool calls by id.
// Results for unknown or expired ids are dropped by the caller.
type pendingToolCalls struct {
	mu    sync.Mutex
	calls map[string]pendingToolCall
}

func newPendingToolCalls() *pendingToolCalls {
	return &pendingToolCalls{calls: make(map[string]pendingToolCall)}
}

func (p *pendingToolCalls) Add(id string, call pendingToolCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[id] = call
}

// Resolve removes and returns the call for id, if it is still pending.
func (p *pendingToolCalls) Resolve(id string) (pendingToolCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return call, ok
}

// HasSuggestion reports whether a call for the given suggestion id is
// already outstanding, so the same suggestion is not re-emitted while
// the client is still deciding.
func (p *pendingToolCalls) HasSuggestion(suggestionID string) bool {
	if suggestionID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, call := range p.calls {
		if call.SuggestionID == suggestionID {
			return true
		}
	}
	return false
}

// Expire removes every call whose deadline has passed and returns the
// expired ids in a stable order.
func (p *pendingToolCalls) Expire(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []string
	for id, call := range p.calls {
		if !call.Deadline.IsZero() && now.After(call.Deadline) {
			expired = append(expired, id)
			delete(p.calls, id)
		}
	}
	sort.Strings(expired)
	return expired
}

func (p *pendingToolCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
