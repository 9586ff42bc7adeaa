// Package server assembles the gateway HTTP surface: the live websocket
// endpoint, health and readiness probes, and the metrics scrape handler,
// wrapped in the shared middleware chain.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/gateway/config"
	"github.com/pitchline/pitchline/pkg/gateway/handlers"
	"github.com/pitchline/pitchline/pkg/gateway/lifecycle"
	"github.com/pitchline/pitchline/pkg/gateway/live/session"
	"github.com/pitchline/pitchline/pkg/gateway/live/sessions"
	"github.com/pitchline/pitchline/pkg/gateway/metrics"
	"github.com/pitchline/pitchline/pkg/gateway/mw"
)

// Dependencies carries the engine-side collaborators the server wires into
// its handlers. Upstream must be non-nil; the rest may be nil for reduced
// deployments (tests, local mock-only runs).
type Dependencies struct {
	Upstream session.Upstream
	Executor *tools.Executor
	Contexts *salescontext.Store

	// ContextBackend names the context storage in /readyz ("memory",
	// "postgres").
	ContextBackend string

	// LiveEnabled reports whether real upstream sessions are available.
	// When false only mock sessions work; /readyz surfaces the mode.
	LiveEnabled bool
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Dependencies

	lifecycle *lifecycle.Lifecycle
	tracker   *sessions.Tracker
	metrics   *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		deps:      deps,
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(),
		metrics:   metrics.New("pitchline"),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:         s.cfg,
		Lifecycle:      s.lifecycle,
		LiveSessions:   s.tracker,
		ContextBackend: s.deps.ContextBackend,
		LiveEnabled:    s.deps.LiveEnabled,
	})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:       s.cfg,
		Logger:       s.logger,
		Upstream:     s.deps.Upstream,
		Executor:     s.deps.Executor,
		Contexts:     s.deps.Contexts,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.tracker,
		Metrics:      s.metrics,
	})

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the readiness gate. While draining, /readyz reports not
// ready and new live connections are refused with a retryable error.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

// WarnLiveSessionsDraining tells every live session the server is going away
// so clients can reconnect elsewhere before the socket drops.
func (s *Server) WarnLiveSessionsDraining() {
	s.tracker.WarnAll("draining", "server is shutting down, please reconnect")
}

// WaitLiveSessions blocks until every live session has unregistered or ctx
// expires. It reports whether the tracker emptied in time.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelLiveSessions force-closes every remaining live session.
func (s *Server) CancelLiveSessions() {
	s.tracker.CancelAll()
}

// LiveSessionCount reports the number of currently registered live sessions.
func (s *Server) LiveSessionCount() int {
	return s.tracker.Count()
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]*engine.Error{
		"error": engine.NewNotFoundError("unknown route"),
	})
}
