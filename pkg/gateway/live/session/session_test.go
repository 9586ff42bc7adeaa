package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitchline/pitchline/pkg/engine/salescontext"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/gateway/live/protocol"
)

type fakeToolResponse struct {
	CallID   string
	Name     string
	Response map[string]any
}

type fakeUpstreamConn struct {
	mu          sync.Mutex
	events      chan UpstreamEvent
	texts       []string
	audioFrames int
	toolResults chan fakeToolResponse
	closed      bool
}

func newFakeUpstreamConn() *fakeUpstreamConn {
	c := &fakeUpstreamConn{
		events:      make(chan UpstreamEvent, 32),
		toolResults: make(chan fakeToolResponse, 8),
	}
	c.events <- UpstreamEvent{Type: UpstreamSetupComplete}
	return c
}

func (c *fakeUpstreamConn) emit(ev UpstreamEvent) { c.events <- ev }

func (c *fakeUpstreamConn) SendAudio(data []byte, mimeType string) error {
	_ = data
	_ = mimeType
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioFrames++
	return nil
}

func (c *fakeUpstreamConn) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeUpstreamConn) SendToolResult(callID, name string, result map[string]any) error {
	c.toolResults <- fakeToolResponse{CallID: callID, Name: name, Response: result}
	return nil
}

func (c *fakeUpstreamConn) Events() <-chan UpstreamEvent { return c.events }

func (c *fakeUpstreamConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeUpstream struct {
	conn *fakeUpstreamConn
}

func (u *fakeUpstream) Connect(ctx context.Context, cfg UpstreamConfig) (UpstreamConn, error) {
	_ = ctx
	_ = cfg
	return u.conn, nil
}

type harness struct {
	t            *testing.T
	client       *websocket.Conn
	upstream     *fakeUpstreamConn
	contexts     *salescontext.Store
	session      *LiveSession
	sessionReady chan struct{}
	done         chan error
}

func newHarness(t *testing.T, cfg Config, start protocol.ClientStart) *harness {
	t.Helper()

	upstreamConn := newFakeUpstreamConn()
	contexts := salescontext.NewStore(salescontext.NewMemoryBackend(), salescontext.Config{})
	registry := tools.NewRegistry(
		tools.NewROICalculatorTool(),
		tools.Func{ToolName: "echo", Desc: "echo input", Fn: func(_ context.Context, input map[string]any) (any, error) {
			return input, nil
		}},
	)
	executor := tools.NewExecutor(registry, tools.NewCache(), slog.New(slog.DiscardHandler), tools.Options{Timeout: time.Second})

	h := &harness{
		t:            t,
		upstream:     upstreamConn,
		contexts:     contexts,
		sessionReady: make(chan struct{}),
		done:         make(chan error, 1),
	}

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess, err := New(Dependencies{
			Conn:         serverConn,
			Logger:       slog.New(slog.DiscardHandler),
			Upstream:     &fakeUpstream{conn: upstreamConn},
			Executor:     executor,
			Contexts:     contexts,
			Start:        start,
			ConnectionID: "conn-test",
			Config:       cfg,
		})
		if err != nil {
			h.done <- err
			return
		}
		h.session = sess
		close(h.sessionReady)
		h.done <- sess.Run()
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	h.client = client
	return h
}

func (h *harness) readEvent() map[string]any {
	h.t.Helper()
	_ = h.client.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := h.client.ReadMessage()
	if err != nil {
		h.t.Fatalf("read event: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal(data, &event); err != nil {
		h.t.Fatalf("unmarshal event: %v", err)
	}
	return event
}

func (h *harness) waitFor(eventType string) map[string]any {
	h.t.Helper()
	for i := 0; i < 50; i++ {
		event := h.readEvent()
		if event["type"] == eventType {
			return event
		}
	}
	h.t.Fatalf("never saw event %q", eventType)
	return nil
}

func (h *harness) sendJSON(v any) {
	h.t.Helper()
	if err := h.client.WriteJSON(v); err != nil {
		h.t.Fatalf("write: %v", err)
	}
}

func defaultStart(sessionID string) protocol.ClientStart {
	return protocol.ClientStart{
		Type:            "start",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		LanguageCode:    "en-US",
		VoiceName:       "Aoede",
	}
}

func TestHandshakeOrdering(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-handshake"))

	if event := h.readEvent(); event["type"] != "start_ack" {
		t.Fatalf("first event = %v, want start_ack", event["type"])
	}
	started := h.readEvent()
	if started["type"] != "session_started" {
		t.Fatalf("second event = %v, want session_started", started["type"])
	}
	if started["connectionId"] != "conn-test" {
		t.Fatalf("connectionId = %v", started["connectionId"])
	}
	stage := h.waitFor("stage_update")
	if stage["stage"] != "discovery" {
		t.Fatalf("initial stage = %v, want discovery", stage["stage"])
	}
	h.waitFor("setup_complete")
}

func TestMockModeEchoesText(t *testing.T) {
	h := newHarness(t, Config{}, func() protocol.ClientStart {
		start := defaultStart("s-mock")
		start.Mock = true
		return start
	}())

	started := h.waitFor("session_started")
	if started["mock"] != true {
		t.Fatalf("session_started.mock = %v, want true", started["mock"])
	}

	h.sendJSON(map[string]any{"type": "text", "content": "hello there"})

	transcript := h.waitFor("input_transcript")
	if transcript["text"] != "hello there" || transcript["isFinal"] != true {
		t.Fatalf("unexpected transcript: %v", transcript)
	}
	reply := h.waitFor("model_text")
	if reply["text"] != "You said: hello there" {
		t.Fatalf("unexpected model_text: %v", reply)
	}
	h.waitFor("turn_complete")
}

func TestSuggestionToolCallLifecycle(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-suggest"))
	h.waitFor("session_started")

	h.sendJSON(map[string]any{
		"type":    "text",
		"content": "we want a consulting engagement but honestly it's too expensive for us",
	})

	call := h.waitFor("tool_call")
	if call["name"] != "executive_memo" {
		t.Fatalf("top suggestion = %v, want executive_memo", call["name"])
	}
	callID, _ := call["callId"].(string)
	if callID == "" {
		t.Fatal("tool_call missing callId")
	}

	h.sendJSON(map[string]any{
		"type":   "tool_result",
		"callId": callID,
		"name":   "executive_memo",
		"result": map[string]any{"delivered": true},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		sc, err := h.contexts.Get(context.Background(), "s-suggest")
		if err != nil {
			t.Fatalf("context get: %v", err)
		}
		if sc != nil && sc.HasCapability("executive_memo") {
			if sc.CurrentObjection != "pricing" {
				t.Fatalf("objection = %q, want pricing", sc.CurrentObjection)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("capability was never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownToolResultDropped(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-unknown"))
	h.waitFor("session_started")

	h.sendJSON(map[string]any{
		"type":   "tool_result",
		"callId": "never-issued",
		"result": map[string]any{"ok": true},
	})
	h.sendJSON(map[string]any{"type": "end"})

	closed := h.waitFor("session_closed")
	if closed["reason"] != "client_end" {
		t.Fatalf("reason = %v, want client_end", closed["reason"])
	}

	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("session error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit")
	}

	sc, err := h.contexts.Get(context.Background(), "s-unknown")
	if err != nil {
		t.Fatalf("context get: %v", err)
	}
	if sc != nil && len(sc.Capabilities) != 0 {
		t.Fatalf("capabilities = %v, want none", sc.Capabilities)
	}
}

func TestModelToolCallExecuted(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-model-tool"))
	h.waitFor("session_started")

	h.upstream.emit(UpstreamEvent{
		Type: UpstreamEventToolCall,
		Calls: []UpstreamToolCall{{
			ID:   "call-roi",
			Name: tools.ToolROICalculator,
			Args: map[string]any{
				"hours_saved_per_week": 5.0,
				"hourly_cost":          100.0,
				"seats":                10.0,
				"annual_price":         60000.0,
			},
		}},
	})

	call := h.waitFor("tool_call")
	if call["name"] != tools.ToolROICalculator || call["callId"] != "call-roi" {
		t.Fatalf("unexpected tool_call: %v", call)
	}
	result := h.waitFor("tool_result")
	if result["success"] != true || result["callId"] != "call-roi" {
		t.Fatalf("unexpected tool_result: %v", result)
	}

	select {
	case resp := <-h.upstream.toolResults:
		if resp.CallID != "call-roi" || resp.Name != tools.ToolROICalculator {
			t.Fatalf("unexpected upstream response: %+v", resp)
		}
		if resp.Response["success"] != true {
			t.Fatalf("upstream response not successful: %v", resp.Response)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upstream never received the tool response")
	}
}

func TestModelToolCallFailureReported(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-model-tool-fail"))
	h.waitFor("session_started")

	h.upstream.emit(UpstreamEvent{
		Type:  UpstreamEventToolCall,
		Calls: []UpstreamToolCall{{ID: "call-bad", Name: "no_such_tool"}},
	})

	result := h.waitFor("tool_result")
	if result["success"] != false || result["callId"] != "call-bad" {
		t.Fatalf("unexpected tool_result: %v", result)
	}
	if msg, _ := result["error"].(string); msg == "" {
		t.Fatal("tool_result missing error message")
	}
}

func TestInterruptedEventForwarded(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-interrupt"))
	h.waitFor("session_started")

	h.upstream.emit(UpstreamEvent{Type: UpstreamAudio, Audio: []byte{1, 2, 3}, MimeType: "audio/pcm"})
	h.upstream.emit(UpstreamEvent{Type: UpstreamInterrupted})

	h.waitFor("interrupted")
	<-h.sessionReady
	if h.session.turnEpoch.Load() != 1 {
		t.Fatalf("turn epoch = %d, want 1", h.session.turnEpoch.Load())
	}
}

func TestHeartbeatEmitted(t *testing.T) {
	h := newHarness(t, Config{
		HeartbeatPoll:     5 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
	}, defaultStart("s-heartbeat"))
	h.waitFor("session_started")

	hb := h.waitFor("heartbeat")
	if ts, ok := hb["timestamp"].(float64); !ok || ts <= 0 {
		t.Fatalf("heartbeat timestamp = %v", hb["timestamp"])
	}
}

func TestIdleTimeoutClosesSession(t *testing.T) {
	h := newHarness(t, Config{
		HeartbeatPoll: 10 * time.Millisecond,
		IdleTimeout:   50 * time.Millisecond,
	}, defaultStart("s-idle"))
	h.waitFor("session_started")

	closed := h.waitFor("session_closed")
	if closed["reason"] != "timeout" {
		t.Fatalf("reason = %v, want timeout", closed["reason"])
	}

	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("session error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit")
	}
	if h.session.CloseReason() != "timeout" {
		t.Fatalf("close reason = %q, want timeout", h.session.CloseReason())
	}
}

func TestSuggestionCallExpires(t *testing.T) {
	h := newHarness(t, Config{
		HeartbeatPoll:     10 * time.Millisecond,
		ToolResultTimeout: 40 * time.Millisecond,
	}, defaultStart("s-expire"))
	h.waitFor("session_started")

	h.sendJSON(map[string]any{"type": "text", "content": "can you run a consulting audit for us"})

	call := h.waitFor("tool_call")
	callID, _ := call["callId"].(string)

	cancellation := h.waitFor("tool_call_cancellation")
	ids, _ := cancellation["callIds"].([]any)
	found := false
	for _, id := range ids {
		if id == callID {
			found = true
		}
	}
	if !found {
		t.Fatalf("cancellation %v does not include %q", ids, callID)
	}
}

func TestBackpressureClosesViaPriorityQueue(t *testing.T) {
	connCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- serverConn
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	serverConn := <-connCh

	contexts := salescontext.NewStore(salescontext.NewMemoryBackend(), salescontext.Config{})
	executor := tools.NewExecutor(tools.NewRegistry(tools.NewROICalculatorTool()), tools.NewCache(), slog.New(slog.DiscardHandler), tools.Options{})
	s, err := New(Dependencies{
		Conn:         serverConn,
		Logger:       slog.New(slog.DiscardHandler),
		Upstream:     &fakeUpstream{conn: newFakeUpstreamConn()},
		Executor:     executor,
		Contexts:     contexts,
		Start:        defaultStart("s-backpressure"),
		ConnectionID: "conn-test",
		Config:       Config{OutboundQueueSize: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// With no writer draining, the second normal enqueue saturates.
	if err := s.sendJSON(protocol.Heartbeat(time.Now())); err != nil {
		t.Fatalf("first send: %v", err)
	}
	err = s.sendJSON(protocol.Heartbeat(time.Now()))
	if !errors.Is(err, errBackpressure) {
		t.Fatalf("second send = %v, want backpressure", err)
	}
	if got := closeReasonForSendErr(err); got != "backpressure" {
		t.Fatalf("close reason = %q, want backpressure", got)
	}
	if got := closeReasonForSendErr(errors.New("marshal failed")); got != "internal_error" {
		t.Fatalf("close reason = %q, want internal_error", got)
	}

	// The close event rides the priority queue, which must still
	// accept frames when the normal queue is full.
	if err := s.Warn("draining", "going away"); err != nil {
		t.Fatalf("priority send under saturation: %v", err)
	}
}

func TestRetransmittedMessageIDCountedOnce(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-retransmit"))
	h.waitFor("session_started")

	frame := map[string]any{"type": "text", "messageId": "m-1", "content": "our goal is to automate reporting"}
	h.sendJSON(frame)
	h.sendJSON(frame)
	h.sendJSON(map[string]any{"type": "text", "messageId": "m-2", "content": "the biggest problem is manual data entry"})

	deadline := time.Now().Add(3 * time.Second)
	for {
		event := h.readEvent()
		if event["type"] == "stage_update" && event["stage"] == "qualification" {
			flow, _ := event["flow"].(map[string]any)
			if turns, _ := flow["total_user_turns"].(float64); turns != 2 {
				t.Fatalf("total_user_turns = %v, want 2 after a replayed messageId", flow["total_user_turns"])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("never reached qualification stage")
		}
	}
}

func TestStageAdvancesWithCoverage(t *testing.T) {
	h := newHarness(t, Config{}, defaultStart("s-stage"))
	h.waitFor("session_started")

	h.sendJSON(map[string]any{"type": "text", "content": "our goal is to automate reporting"})
	h.sendJSON(map[string]any{"type": "text", "content": "the biggest problem is manual data entry"})

	deadline := time.Now().Add(3 * time.Second)
	for {
		event := h.readEvent()
		if event["type"] == "stage_update" && event["stage"] == "qualification" {
			if event["agent"] != "qualifier" {
				t.Fatalf("agent = %v, want qualifier", event["agent"])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("never reached qualification stage")
		}
	}
}
