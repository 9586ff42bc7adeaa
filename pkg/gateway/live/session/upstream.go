package session

import (
	"context"
	"encoding/base64"
	"sync"
)

// UpstreamEventType tags events flowing from the model upstream into
// the session loop.
type UpstreamEventType string

const (
	UpstreamSetupComplete        UpstreamEventType = "setup_complete"
	UpstreamInputTranscript      UpstreamEventType = "input_transcript"
	UpstreamOutputTranscript     UpstreamEventType = "output_transcript"
	UpstreamModelText            UpstreamEventType = "model_text"
	UpstreamAudio                UpstreamEventType = "audio"
	UpstreamEventToolCall        UpstreamEventType = "tool_call"
	UpstreamToolCallCancellation UpstreamEventType = "tool_call_cancellation"
	UpstreamTurnComplete         UpstreamEventType = "turn_complete"
	UpstreamInterrupted          UpstreamEventType = "interrupted"
	UpstreamClosed               UpstreamEventType = "closed"
)

// UpstreamToolCall is one function call requested by the model.
type UpstreamToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// UpstreamEvent is one event from the model connection. Only the
// fields relevant to Type are set.
type UpstreamEvent struct {
	Type      UpstreamEventType
	Text      string
	IsFinal   bool
	Audio     []byte
	MimeType  string
	Calls     []UpstreamToolCall
	CancelIDs []string
	Err       error
}

// UpstreamConfig carries the per-session parameters for a model
// connection.
type UpstreamConfig struct {
	SessionID    string
	LanguageCode string
	VoiceName    string
	SystemPrompt string
	ToolNames    []string
}

// UpstreamConn is one live model connection. Events terminates with an
// UpstreamClosed event (or a channel close) when the connection ends.
type UpstreamConn interface {
	SendAudio(data []byte, mimeType string) error
	SendText(text string) error
	SendToolResult(callID, name string, result map[string]any) error
	Events() <-chan UpstreamEvent
	Close() error
}

// Upstream dials model connections.
type Upstream interface {
	Connect(ctx context.Context, cfg UpstreamConfig) (UpstreamConn, error)
}

// MockUpstream is a canned model used when a start frame asks for mock
// mode: it echoes typed text back as a transcript and completes the
// turn. No audio, no tools.
type MockUpstream struct{}

func (MockUpstream) Connect(ctx context.Context, cfg UpstreamConfig) (UpstreamConn, error) {
	conn := &mockConn{events: make(chan UpstreamEvent, 16)}
	conn.events <- UpstreamEvent{Type: UpstreamSetupComplete}
	return conn, nil
}

type mockConn struct {
	mu     sync.Mutex
	closed bool
	events chan UpstreamEvent
}

func (c *mockConn) emit(ev UpstreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *mockConn) SendAudio(data []byte, mimeType string) error {
	_ = data
	_ = mimeType
	return nil
}

func (c *mockConn) SendText(text string) error {
	c.emit(UpstreamEvent{Type: UpstreamInputTranscript, Text: text, IsFinal: true})
	c.emit(UpstreamEvent{Type: UpstreamModelText, Text: "You said: " + text})
	c.emit(UpstreamEvent{Type: UpstreamTurnComplete})
	return nil
}

func (c *mockConn) SendToolResult(callID, name string, result map[string]any) error {
	_ = callID
	_ = name
	_ = result
	return nil
}

func (c *mockConn) Events() <-chan UpstreamEvent { return c.events }

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

func encodeAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
