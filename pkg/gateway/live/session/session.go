// Package session runs one live sales conversation: a websocket to the
// browser on one side, a realtime model connection on the other, and
// the engine (flow tracking, intent detection, suggestions, tools,
// context) in between.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pitchline/pitchline/pkg/engine/flow"
	"github.com/pitchline/pitchline/pkg/engine/intent"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
	"github.com/pitchline/pitchline/pkg/engine/suggest"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/gateway/live/protocol"
	"github.com/pitchline/pitchline/pkg/gateway/metrics"
)

const (
	salesSystemPrompt = "You are a sales engineer for an automation consultancy. Qualify the lead conversationally: learn their goals, pain points, data landscape, readiness, budget, and success criteria. Be concise and concrete. Use tools when they help, and never invent numbers."

	outboundPriorityQueueSize = 8
	contextUpdateRetries      = 3
)

var errBackpressure = errors.New("live outbound backpressure")

type Config struct {
	LanguageCode        string
	VoiceName           string
	MaxJSONMessageBytes int64
	OutboundQueueSize   int
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	HeartbeatPoll       time.Duration
	HeartbeatInterval   time.Duration
	IdleTimeout         time.Duration
	ToolResultTimeout   time.Duration
}

type Dependencies struct {
	Conn         *websocket.Conn
	Logger       *slog.Logger
	Upstream     Upstream
	Executor     *tools.Executor
	Flow         *flow.Tracker
	Contexts     *salescontext.Store
	Start        protocol.ClientStart
	ConnectionID string
	Config       Config
	Metrics      *metrics.Metrics
	Now          func() time.Time
	NewCallID    func() string
}

type LiveSession struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	upstream     Upstream
	executor     *tools.Executor
	flowTracker  *flow.Tracker
	contexts     *salescontext.Store
	start        protocol.ClientStart
	connectionID string
	cfg          Config
	metrics      *metrics.Metrics
	now          func() time.Time
	newCallID    func() string

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	// turnEpoch tags outbound audio; a barge-in bumps it so queued
	// audio from the interrupted turn is dropped, never played.
	turnEpoch atomic.Int64

	pending *pendingToolCalls

	closeOnce   sync.Once
	closeReason atomic.Value

	modelCallsMu sync.Mutex
	modelCalls   map[string]context.CancelFunc

	// Loop-local conversation state. Touched only by Run's goroutine.
	flowState        flow.State
	contextVersion   int64
	stage            string
	utteranceCounter int64
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if deps.Flow == nil {
		deps.Flow = flow.NewTracker()
	}
	if deps.Contexts == nil {
		return nil, fmt.Errorf("context store is required")
	}
	if strings.TrimSpace(deps.Start.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.HeartbeatPoll <= 0 {
		deps.Config.HeartbeatPoll = time.Second
	}
	if deps.Config.HeartbeatInterval <= 0 {
		deps.Config.HeartbeatInterval = 30 * time.Second
	}
	if deps.Config.ToolResultTimeout <= 0 {
		deps.Config.ToolResultTimeout = 30 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCallID == nil {
		deps.NewCallID = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &LiveSession{
		conn:             deps.Conn,
		logger:           deps.Logger.With("session_id", deps.Start.SessionID, "connection_id", deps.ConnectionID),
		upstream:         deps.Upstream,
		executor:         deps.Executor,
		flowTracker:      deps.Flow,
		contexts:         deps.Contexts,
		start:            deps.Start,
		connectionID:     deps.ConnectionID,
		cfg:              deps.Config,
		metrics:          deps.Metrics,
		now:              deps.Now,
		newCallID:        deps.NewCallID,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		pending:          newPendingToolCalls(),
		modelCalls:       make(map[string]context.CancelFunc),
		flowState:        flow.NewState(),
		stage:            "discovery",
	}
	return s, nil
}

// CloseReason reports why the session ended, once Run has returned.
func (s *LiveSession) CloseReason() string {
	reason, _ := s.closeReason.Load().(string)
	return reason
}

// Cancel stops the session from outside, e.g. during shutdown drain.
func (s *LiveSession) Cancel() {
	s.cancel()
}

// Warn pushes an out-of-band warning event to the client.
func (s *LiveSession) Warn(code, message string) error {
	return s.sendPriority(protocol.Error(message, code))
}

func (s *LiveSession) sessionID() string { return s.start.SessionID }

func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
			priority:     s.outboundPriority,
			normal:       s.outboundNormal,
			isStaleTurn:  s.isStaleTurn,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	flushAndClose := func() {
		s.cancel()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
	}
	endSession := func(reason string) {
		s.closeOnce.Do(func() {
			s.closeReason.Store(reason)
			_ = s.sendPriority(protocol.SessionClosed(reason))
		})
		flushAndClose()
	}
	// failSend closes out a session whose outbound path failed. The
	// close event rides the priority queue, which normal-queue
	// saturation cannot fill.
	failSend := func(err error) error {
		endSession(closeReasonForSendErr(err))
		return err
	}

	if err := s.sendPriority(protocol.StartAck(s.connectionID)); err != nil {
		return err
	}

	if err := s.loadContext(); err != nil {
		s.logger.Error("context load failed", "error", err)
		_ = s.sendPriority(protocol.Error("failed to load session context", "internal"))
		endSession("internal_error")
		return err
	}

	var modelUpstream Upstream = s.upstream
	if s.start.Mock {
		modelUpstream = MockUpstream{}
	}
	upstreamConn, err := modelUpstream.Connect(s.ctx, UpstreamConfig{
		SessionID:    s.sessionID(),
		LanguageCode: s.languageCode(),
		VoiceName:    s.voiceName(),
		SystemPrompt: salesSystemPrompt,
		ToolNames:    s.executor.ToolNames(),
	})
	if err != nil {
		s.logger.Error("upstream connect failed", "error", err)
		_ = s.sendPriority(protocol.Error("failed to connect model upstream", "upstream"))
		endSession("upstream_error")
		return err
	}
	defer upstreamConn.Close()

	if err := s.sendPriority(protocol.SessionStarted(s.connectionID, s.languageCode(), s.voiceName(), s.start.Mock)); err != nil {
		return err
	}
	if err := s.sendJSON(protocol.StageUpdate(s.stage, agentFor(s.stage), flowSummary(s.flowState))); err != nil {
		return failSend(err)
	}

	heartbeatTicker := time.NewTicker(s.cfg.HeartbeatPoll)
	defer heartbeatTicker.Stop()

	lastClientFrame := s.now()
	lastHeartbeat := s.now()

	for {
		select {
		case <-s.ctx.Done():
			endSession("server_shutdown")
			return nil

		case err := <-writerErrCh:
			if err != nil {
				s.closeReason.Store("write_error")
				return err
			}
			return nil

		case frame, ok := <-readCh:
			if !ok || frame.err != nil {
				endSession("connection_lost")
				return nil
			}
			if frame.messageType != websocket.TextMessage {
				continue
			}
			lastClientFrame = s.now()

			msg, decErr := protocol.DecodeClientMessage(frame.data)
			if decErr != nil {
				var de *protocol.DecodeError
				code := "bad_request"
				if errors.As(decErr, &de) {
					code = de.Code
				}
				if code == "unsupported" {
					_ = s.sendJSON(protocol.Error(decErr.Error(), code))
					continue
				}
				_ = s.sendPriority(protocol.Error(decErr.Error(), code))
				endSession("protocol_error")
				return nil
			}

			s.metrics.RecordEvent(clientFrameType(msg), "in")

			switch m := msg.(type) {
			case protocol.ClientStart:
				_ = s.sendJSON(protocol.Error("session already started", "bad_request"))

			case protocol.ClientAudioChunk:
				audio, err := base64.StdEncoding.DecodeString(m.DataB64)
				if err != nil {
					_ = s.sendPriority(protocol.Error("invalid audio_chunk.data", "bad_request"))
					endSession("protocol_error")
					return nil
				}
				if err := upstreamConn.SendAudio(audio, m.MimeType); err != nil {
					s.logger.Warn("upstream audio send failed", "error", err)
					endSession("upstream_error")
					return err
				}

			case protocol.ClientText:
				s.handleUserUtterance(m.MessageID, m.Content)
				if err := s.sendJSON(protocol.Text(m.Content)); err != nil {
					return failSend(err)
				}
				if err := upstreamConn.SendText(m.Content); err != nil {
					s.logger.Warn("upstream text send failed", "error", err)
					endSession("upstream_error")
					return err
				}

			case protocol.ClientToolResult:
				s.handleClientToolResult(m)

			case protocol.ClientEnd:
				endSession("client_end")
				return nil
			}

		case ev, ok := <-upstreamConn.Events():
			if !ok {
				endSession("upstream_closed")
				return nil
			}
			done, err := s.handleUpstreamEvent(upstreamConn, ev)
			if err != nil {
				if errors.Is(err, errBackpressure) {
					return failSend(err)
				}
				endSession("upstream_error")
				return err
			}
			if done {
				endSession("upstream_closed")
				return nil
			}

		case <-heartbeatTicker.C:
			now := s.now()
			if now.Sub(lastHeartbeat) >= s.cfg.HeartbeatInterval {
				lastHeartbeat = now
				if err := s.sendJSON(protocol.Heartbeat(now)); err != nil {
					return failSend(err)
				}
			}
			if expired := s.pending.Expire(now); len(expired) > 0 {
				s.logger.Info("tool calls expired", "call_ids", expired)
				if err := s.sendJSON(protocol.ToolCallCancellation(expired)); err != nil {
					return failSend(err)
				}
			}
			if s.cfg.IdleTimeout > 0 && now.Sub(lastClientFrame) >= s.cfg.IdleTimeout {
				s.logger.Info("session idle timeout")
				endSession("timeout")
				return nil
			}
		}
	}
}

func (s *LiveSession) handleUpstreamEvent(conn UpstreamConn, ev UpstreamEvent) (done bool, err error) {
	switch ev.Type {
	case UpstreamSetupComplete:
		return false, s.sendJSON(protocol.SetupComplete())
	case UpstreamInputTranscript:
		if err := s.sendJSON(protocol.InputTranscript(ev.Text, ev.IsFinal)); err != nil {
			return false, err
		}
		if ev.IsFinal {
			s.handleUserUtterance("", ev.Text)
		}
		return false, nil
	case UpstreamOutputTranscript:
		return false, s.sendJSON(protocol.OutputTranscript(ev.Text, ev.IsFinal))
	case UpstreamModelText:
		return false, s.sendJSON(protocol.ModelText(ev.Text))
	case UpstreamAudio:
		return false, s.sendAudio(ev.Audio, ev.MimeType)
	case UpstreamTurnComplete:
		return false, s.sendJSON(protocol.TurnComplete())
	case UpstreamInterrupted:
		s.turnEpoch.Add(1)
		return false, s.sendPriority(protocol.Interrupted())
	case UpstreamEventToolCall:
		for _, call := range ev.Calls {
			s.startModelToolCall(conn, call)
		}
		return false, nil
	case UpstreamToolCallCancellation:
		s.cancelModelToolCalls(ev.CancelIDs)
		return false, s.sendJSON(protocol.ToolCallCancellation(ev.CancelIDs))
	case UpstreamClosed:
		if ev.Err != nil {
			s.logger.Warn("upstream closed with error", "error", ev.Err)
			_ = s.sendPriority(protocol.Error("model upstream failed", "upstream"))
			return true, ev.Err
		}
		return true, nil
	default:
		s.logger.Warn("unknown upstream event", "type", string(ev.Type))
		return false, nil
	}
}

// handleUserUtterance folds one finished user turn into the engine:
// coverage tracking, intent and exit classification, context updates,
// stage transitions, and tool suggestions. The client's messageId, when
// present, keys turn dedup so a retransmitted frame is counted once.
func (s *LiveSession) handleUserUtterance(messageID, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	s.utteranceCounter++
	id := strings.TrimSpace(messageID)
	if id == "" {
		id = fmt.Sprintf("u_%d", s.utteranceCounter)
	}
	now := s.now()
	prev := s.flowState
	next := s.flowTracker.Observe(prev, flow.UserMessage{
		ID:        id,
		Text:      trimmed,
		Timestamp: now,
	})
	coverageChanged := next.CoveredCount() != prev.CoveredCount()
	s.flowState = next

	det := intent.Detect(trimmed)
	exit := intent.DetectExit(trimmed)

	if det.Objection != "" {
		objection := det.Objection
		s.updateContext(func(c *salescontext.IntelligenceContext) {
			c.CurrentObjection = objection
		})
	}

	stage := stageFor(exit, next)
	if stage != s.stage || coverageChanged {
		s.stage = stage
		_ = s.sendJSON(protocol.StageUpdate(stage, agentFor(stage), flowSummary(next)))
	}
	if next.ShouldOfferRecap && !next.RecapOffered {
		s.flowState = s.flowTracker.MarkRecapOffered(next)
	}

	// Minimal replies carry no new signal; do not re-rank suggestions.
	if exit.Kind == intent.ExitMinimal {
		return
	}

	salesCtx, err := s.contexts.Get(s.ctx, s.sessionID())
	if err != nil {
		s.logger.Warn("context read failed", "error", err)
		return
	}
	for _, sug := range suggest.Suggest(salesCtx, det) {
		if s.pending.HasSuggestion(sug.ID) {
			continue
		}
		callID := s.newCallID()
		s.pending.Add(callID, pendingToolCall{
			Name:         sug.Capability,
			SuggestionID: sug.ID,
			Capability:   sug.Capability,
			Deadline:     now.Add(s.cfg.ToolResultTimeout),
		})
		input := map[string]any{
			"label":         sug.Label,
			"action":        string(sug.Action),
			"suggestion_id": sug.ID,
		}
		for k, v := range sug.Payload {
			input[k] = v
		}
		_ = s.sendJSON(protocol.ToolCall(callID, sug.Capability, input))
	}
}

// handleClientToolResult resolves a pending suggestion call. Results
// for unknown or expired ids are dropped.
func (s *LiveSession) handleClientToolResult(m protocol.ClientToolResult) {
	call, ok := s.pending.Resolve(m.CallID)
	if !ok {
		s.logger.Warn("dropping tool_result with no pending call", "call_id", m.CallID)
		return
	}
	if m.IsError || strings.TrimSpace(m.Error) != "" {
		s.logger.Info("client tool call failed", "call_id", m.CallID, "tool", call.Name, "error", m.Error)
		return
	}
	capability := call.Capability
	s.updateContext(func(c *salescontext.IntelligenceContext) {
		c.RecordCapability(capability)
	})
	s.logger.Info("client tool call resolved", "call_id", m.CallID, "tool", call.Name)
}

// startModelToolCall executes one model-requested function server-side
// and reports the outcome to both the model and the client.
func (s *LiveSession) startModelToolCall(conn UpstreamConn, call UpstreamToolCall) {
	callID := strings.TrimSpace(call.ID)
	if callID == "" {
		callID = s.newCallID()
	}
	_ = s.sendJSON(protocol.ToolCall(callID, call.Name, call.Args))

	execCtx, cancel := context.WithCancel(s.ctx)
	s.modelCallsMu.Lock()
	s.modelCalls[callID] = cancel
	s.modelCallsMu.Unlock()

	go func() {
		defer func() {
			s.modelCallsMu.Lock()
			delete(s.modelCalls, callID)
			s.modelCallsMu.Unlock()
			cancel()
		}()

		result := s.executor.Execute(execCtx, call.Name, call.Args, tools.Options{})
		if execCtx.Err() != nil {
			return
		}
		s.metrics.RecordToolExecution(result.Tool, result.Success, result.Cached, result.Duration)

		out := protocol.ServerToolResult{
			Type:       "tool_result",
			CallID:     callID,
			Name:       call.Name,
			Success:    result.Success,
			Data:       result.Data,
			Cached:     result.Cached,
			Attempt:    result.Attempt,
			DurationMS: result.Duration.Milliseconds(),
		}
		response := map[string]any{"success": result.Success}
		if result.Success {
			response["data"] = result.Data
		} else if result.Error != nil {
			out.Error = result.Error.Message
			response["error"] = result.Error.Message
		}
		_ = s.sendJSON(out)
		if err := conn.SendToolResult(callID, call.Name, response); err != nil {
			s.logger.Warn("upstream tool result send failed", "call_id", callID, "error", err)
		}
	}()
}

func (s *LiveSession) cancelModelToolCalls(ids []string) {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	for _, id := range ids {
		if cancel, ok := s.modelCalls[id]; ok {
			cancel()
			delete(s.modelCalls, id)
		}
	}
}

// loadContext seeds or restores the session's intelligence context and
// pins its version for subsequent compare-and-swap updates.
func (s *LiveSession) loadContext() error {
	existing, err := s.contexts.Get(s.ctx, s.sessionID())
	if err != nil {
		return err
	}
	if existing != nil {
		s.contextVersion = existing.Version
		return nil
	}
	leadEmail := strings.TrimSpace(s.start.LeadEmail)
	created, err := s.contexts.UpdateWithVersionCheck(s.ctx, s.sessionID(), 0, func(c *salescontext.IntelligenceContext) {
		c.LeadEmail = leadEmail
	})
	if err != nil {
		var conflict *salescontext.VersionConflictError
		if errors.As(err, &conflict) {
			s.contextVersion = conflict.Current.Version
			return nil
		}
		return err
	}
	s.contextVersion = created.Version
	return nil
}

// updateContext applies a mutation with bounded retry on version
// conflicts. A lost race refreshes the pinned version and retries; a
// backend failure is logged and the update is abandoned.
func (s *LiveSession) updateContext(mutation salescontext.Mutation) {
	for i := 0; i < contextUpdateRetries; i++ {
		updated, err := s.contexts.UpdateWithVersionCheck(s.ctx, s.sessionID(), s.contextVersion, mutation)
		if err == nil {
			s.contextVersion = updated.Version
			return
		}
		var conflict *salescontext.VersionConflictError
		if errors.As(err, &conflict) {
			s.metrics.RecordContextConflict()
			s.contextVersion = conflict.Current.Version
			continue
		}
		s.logger.Warn("context update failed", "error", err)
		return
	}
	s.logger.Warn("context update abandoned after repeated version conflicts")
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		if s.cfg.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) isStaleTurn(turn int64) bool {
	return turn != s.turnEpoch.Load()
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outboundNormal <- outboundFrame{payload: payload}:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return errBackpressure
	}
}

func (s *LiveSession) sendPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outboundPriority <- outboundFrame{payload: payload}:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// sendAudio enqueues one model audio frame tagged with the current
// turn. Backpressure drops audio rather than killing the session.
func (s *LiveSession) sendAudio(data []byte, mimeType string) error {
	payload, err := json.Marshal(protocol.Audio(encodeAudio(data), mimeType))
	if err != nil {
		return err
	}
	select {
	case s.outboundNormal <- outboundFrame{isAudio: true, turn: s.turnEpoch.Load(), payload: payload}:
		s.metrics.RecordEvent("audio", "out")
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		s.logger.Warn("dropping audio frame under backpressure")
		return nil
	}
}

func (s *LiveSession) languageCode() string {
	if code := strings.TrimSpace(s.start.LanguageCode); code != "" {
		return code
	}
	if code := strings.TrimSpace(s.cfg.LanguageCode); code != "" {
		return code
	}
	return "en-US"
}

func (s *LiveSession) voiceName() string {
	if name := strings.TrimSpace(s.start.VoiceName); name != "" {
		return name
	}
	return strings.TrimSpace(s.cfg.VoiceName)
}

// closeReasonForSendErr names why an outbound send failed. Queue
// saturation is reported distinctly so operators can tell a slow
// client from a server fault.
func closeReasonForSendErr(err error) string {
	if errors.Is(err, errBackpressure) {
		return "backpressure"
	}
	return "internal_error"
}

func clientFrameType(msg any) string {
	switch msg.(type) {
	case protocol.ClientStart:
		return "start"
	case protocol.ClientAudioChunk:
		return "audio_chunk"
	case protocol.ClientText:
		return "text"
	case protocol.ClientToolResult:
		return "tool_result"
	case protocol.ClientEnd:
		return "end"
	default:
		return "unknown"
	}
}

func stageFor(exit intent.ExitDetection, state flow.State) string {
	switch exit.Kind {
	case intent.ExitBooking:
		return "booking"
	case intent.ExitFrustration:
		return "recovery"
	}
	if state.ShouldOfferRecap || state.RecapOffered {
		return "recap"
	}
	if state.CoveredCount() >= 2 {
		return "qualification"
	}
	return "discovery"
}

func agentFor(stage string) string {
	switch stage {
	case "booking":
		return "closer"
	case "recovery":
		return "support"
	default:
		return "qualifier"
	}
}

func flowSummary(state flow.State) map[string]any {
	covered := make([]string, 0, len(state.CoverageOrder))
	for _, category := range state.CoverageOrder {
		covered = append(covered, string(category))
	}
	return map[string]any{
		"covered":            covered,
		"covered_count":      state.CoveredCount(),
		"total_user_turns":   state.TotalUserTurns,
		"should_offer_recap": state.ShouldOfferRecap,
	}
}
