package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pitchline/pitchline/pkg/gateway/config"
	"github.com/pitchline/pitchline/pkg/gateway/live/session"
)

func serverConfig() config.Config {
	return config.Config{
		CORSAllowedOrigins:      map[string]struct{}{},
		LiveMaxJSONMessageBytes: 256 * 1024,
		LiveOutboundQueueSize:   128,
		LiveHeartbeatPoll:       time.Second,
		LiveHeartbeatInterval:   30 * time.Second,
		LiveToolResultTimeout:   30 * time.Second,
		ToolMaxRetries:          3,
		ToolBaseDelay:           200 * time.Millisecond,
		ToolMaxDelay:            5 * time.Second,
		ReadHeaderTimeout:       10 * time.Second,
		ShutdownGracePeriod:     30 * time.Second,
	}
}

func newTestServer() *Server {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(serverConfig(), logger, Dependencies{
		Upstream:       session.MockUpstream{},
		ContextBackend: "memory",
		LiveEnabled:    false,
	})
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"type":"not_found_error"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_Healthz_Reachable(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_Metrics_Reachable(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestServer_Readyz_ReflectsDraining(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("before drain: status=%d body=%q", rr.Code, rr.Body.String())
	}

	s.SetDraining(true)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("while draining: status=%d body=%q", rr.Code, rr.Body.String())
	}

	s.SetDraining(false)

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("after undrain: status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_Live_RefusedWhileDraining(t *testing.T) {
	s := newTestServer()
	s.SetDraining(true)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/live", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_RequestID_OnEveryResponse(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestServer_WaitLiveSessions_EmptyTracker(t *testing.T) {
	s := newTestServer()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !s.WaitLiveSessions(ctx) {
		t.Fatal("empty tracker should drain immediately")
	}
	if n := s.LiveSessionCount(); n != 0 {
		t.Fatalf("count=%d", n)
	}
}
