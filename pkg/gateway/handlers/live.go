// Package handlers wires HTTP endpoints to the live session engine.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/flow"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/gateway/config"
	"github.com/pitchline/pitchline/pkg/gateway/lifecycle"
	"github.com/pitchline/pitchline/pkg/gateway/live/protocol"
	"github.com/pitchline/pitchline/pkg/gateway/live/session"
	"github.com/pitchline/pitchline/pkg/gateway/live/sessions"
	"github.com/pitchline/pitchline/pkg/gateway/metrics"
	"github.com/pitchline/pitchline/pkg/gateway/mw"
)

const liveHandshakeTimeout = 5 * time.Second

// LiveHandler handles /v1/live websocket sessions.
type LiveHandler struct {
	Config       config.Config
	Logger       *slog.Logger
	Upstream     session.Upstream
	Executor     *tools.Executor
	Contexts     *salescontext.Store
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
	Metrics      *metrics.Metrics
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, &engine.Error{
			Type:    engine.ErrInvalidInput,
			Message: "method not allowed",
			Code:    "method_not_allowed",
		})
		return
	}
	if h.Lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, &engine.Error{
			Type:    engine.ErrConnection,
			Message: "gateway is draining",
			Code:    "draining",
		})
		return
	}
	if !h.originAllowed(r) {
		writeJSONError(w, http.StatusForbidden, &engine.Error{
			Type:    engine.ErrAuth,
			Message: "origin is not allowed",
			Param:   "Origin",
		})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	connectionID := "conn_" + uuid.NewString()
	if err := conn.WriteJSON(protocol.Connected(connectionID)); err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(liveHandshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "failed to read start frame", "bad_request")
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "first frame must be start", "bad_request")
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		code := "bad_request"
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			code = de.Code
		}
		h.writeWSError(conn, err.Error(), code)
		return
	}
	start, ok := decoded.(protocol.ClientStart)
	if !ok {
		h.writeWSError(conn, "first frame must be start", "bad_request")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := session.New(session.Dependencies{
		Conn:         conn,
		Logger:       logger.With("request_id", reqID),
		Upstream:     h.Upstream,
		Executor:     h.Executor,
		Flow:         flow.NewTracker(),
		Contexts:     h.Contexts,
		Start:        start,
		ConnectionID: connectionID,
		Metrics:      h.Metrics,
		Config: session.Config{
			LanguageCode:        h.Config.LiveLanguageCode,
			VoiceName:           h.Config.LiveVoiceName,
			MaxJSONMessageBytes: h.Config.LiveMaxJSONMessageBytes,
			OutboundQueueSize:   h.Config.LiveOutboundQueueSize,
			PingInterval:        h.Config.LiveWSPingInterval,
			WriteTimeout:        h.Config.LiveWSWriteTimeout,
			ReadTimeout:         h.Config.LiveWSReadTimeout,
			HeartbeatPoll:       h.Config.LiveHeartbeatPoll,
			HeartbeatInterval:   h.Config.LiveHeartbeatInterval,
			IdleTimeout:         h.Config.LiveIdleTimeout,
			ToolResultTimeout:   h.Config.LiveToolResultTimeout,
		},
	})
	if err != nil {
		h.writeWSError(conn, "failed to initialize live session", "internal")
		return
	}

	unregister := func() {}
	if h.LiveSessions != nil {
		var regErr error
		unregister, regErr = h.LiveSessions.Register(start.SessionID, sessions.Handle{
			ConnectionID: connectionID,
			Cancel:       s.Cancel,
			Warn:         s.Warn,
		})
		if regErr != nil {
			var active *sessions.ErrSessionActive
			if errors.As(regErr, &active) {
				logger.Warn("rejecting duplicate live connection",
					"session_id", start.SessionID,
					"holder_connection_id", active.ConnectionID,
				)
			}
			h.writeWSError(conn, "session already has an active connection", "session_active")
			return
		}
	}
	defer unregister()

	h.Metrics.RecordSessionStart()
	startedAt := time.Now()
	runErr := s.Run()
	h.Metrics.RecordSessionEnd(s.CloseReason(), time.Since(startedAt))
	if runErr != nil {
		logger.Warn("live session ended with error",
			"session_id", start.SessionID,
			"connection_id", connectionID,
			"reason", s.CloseReason(),
			"error", runErr,
		)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, message, code string) {
	_ = conn.WriteJSON(protocol.Error(message, code))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(2*time.Second))
}
