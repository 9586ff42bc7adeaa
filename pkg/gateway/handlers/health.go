package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pitchline/pitchline/pkg/gateway/config"
	"github.com/pitchline/pitchline/pkg/gateway/lifecycle"
	"github.com/pitchline/pitchline/pkg/gateway/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config         config.Config
	Lifecycle      *lifecycle.Lifecycle
	LiveSessions   *sessions.Tracker
	ContextBackend string
	LiveEnabled    bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		LiveEnabled    bool     `json:"live_enabled"`
		ContextBackend string   `json:"context_backend"`
		ActiveSessions int      `json:"active_sessions"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.LiveMaxJSONMessageBytes <= 0 {
		issues = append(issues, "live max json message bytes must be > 0")
	}
	if h.Config.LiveOutboundQueueSize <= 0 {
		issues = append(issues, "live outbound queue size must be > 0")
	}
	if h.Config.LiveHeartbeatPoll <= 0 || h.Config.LiveHeartbeatInterval < h.Config.LiveHeartbeatPoll {
		issues = append(issues, "heartbeat interval must be >= poll and both > 0")
	}
	if h.Config.LiveToolResultTimeout <= 0 {
		issues = append(issues, "tool result timeout must be > 0")
	}
	if h.Config.ToolMaxRetries <= 0 || h.Config.ToolBaseDelay <= 0 || h.Config.ToolMaxDelay < h.Config.ToolBaseDelay {
		issues = append(issues, "tool retry budget is invalid")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ShutdownGracePeriod <= 0 {
		issues = append(issues, "server timeouts must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		LiveEnabled:    h.LiveEnabled,
		ContextBackend: h.ContextBackend,
		ActiveSessions: h.LiveSessions.Count(),
		Issues:         issues,
	})
}
