package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"PITCHLINE_ADDR",
	"PITCHLINE_CORS_ORIGINS",
	"PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES",
	"PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE",
	"PITCHLINE_LIVE_WS_PING_INTERVAL",
	"PITCHLINE_LIVE_WS_WRITE_TIMEOUT",
	"PITCHLINE_LIVE_WS_READ_TIMEOUT",
	"PITCHLINE_LIVE_HEARTBEAT_POLL",
	"PITCHLINE_LIVE_HEARTBEAT_INTERVAL",
	"PITCHLINE_LIVE_IDLE_TIMEOUT",
	"PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT",
	"PITCHLINE_LIVE_LANGUAGE_CODE",
	"PITCHLINE_LIVE_VOICE_NAME",
	"PITCHLINE_CONTEXT_CACHE_TTL",
	"PITCHLINE_CONTEXT_STALE_AFTER",
	"PITCHLINE_TOOL_MAX_RETRIES",
	"PITCHLINE_TOOL_BASE_DELAY",
	"PITCHLINE_TOOL_MAX_DELAY",
	"PITCHLINE_TOOL_TIMEOUT",
	"PITCHLINE_TOOL_CACHE_TTL",
	"PITCHLINE_TOOL_CACHE_ENABLED",
	"PITCHLINE_POSTGRES_DSN",
	"PITCHLINE_GEMINI_API_KEY",
	"PITCHLINE_GEMINI_LIVE_MODEL",
	"PITCHLINE_GEMINI_ANALYSIS_MODEL",
	"PITCHLINE_WEB_SEARCH_API_KEY",
	"PITCHLINE_WEB_SEARCH_BASE_URL",
	"PITCHLINE_ENRICH_API_KEY",
	"PITCHLINE_ENRICH_BASE_URL",
	"PITCHLINE_READ_HEADER_TIMEOUT",
	"PITCHLINE_SHUTDOWN_GRACE_PERIOD",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 0", len(cfg.CORSAllowedOrigins))
	}
	if cfg.LiveMaxJSONMessageBytes != 256*1024 {
		t.Fatalf("LiveMaxJSONMessageBytes = %d, want %d", cfg.LiveMaxJSONMessageBytes, int64(256*1024))
	}
	if cfg.LiveOutboundQueueSize != 128 {
		t.Fatalf("LiveOutboundQueueSize = %d, want 128", cfg.LiveOutboundQueueSize)
	}
	if cfg.LiveWSPingInterval != 20*time.Second {
		t.Fatalf("LiveWSPingInterval = %v, want 20s", cfg.LiveWSPingInterval)
	}
	if cfg.LiveWSWriteTimeout != 5*time.Second {
		t.Fatalf("LiveWSWriteTimeout = %v, want 5s", cfg.LiveWSWriteTimeout)
	}
	if cfg.LiveWSReadTimeout != 0 {
		t.Fatalf("LiveWSReadTimeout = %v, want 0", cfg.LiveWSReadTimeout)
	}
	if cfg.LiveHeartbeatPoll != time.Second {
		t.Fatalf("LiveHeartbeatPoll = %v, want 1s", cfg.LiveHeartbeatPoll)
	}
	if cfg.LiveHeartbeatInterval != 30*time.Second {
		t.Fatalf("LiveHeartbeatInterval = %v, want 30s", cfg.LiveHeartbeatInterval)
	}
	if cfg.LiveIdleTimeout != 90*time.Second {
		t.Fatalf("LiveIdleTimeout = %v, want 90s", cfg.LiveIdleTimeout)
	}
	if cfg.LiveToolResultTimeout != 30*time.Second {
		t.Fatalf("LiveToolResultTimeout = %v, want 30s", cfg.LiveToolResultTimeout)
	}
	if cfg.LiveLanguageCode != "en-US" {
		t.Fatalf("LiveLanguageCode = %q, want en-US", cfg.LiveLanguageCode)
	}
	if cfg.LiveVoiceName != "Aoede" {
		t.Fatalf("LiveVoiceName = %q, want Aoede", cfg.LiveVoiceName)
	}
	if cfg.ContextCacheTTL != 30*time.Second {
		t.Fatalf("ContextCacheTTL = %v, want 30s", cfg.ContextCacheTTL)
	}
	if cfg.ContextStaleAfter != 10*time.Minute {
		t.Fatalf("ContextStaleAfter = %v, want 10m", cfg.ContextStaleAfter)
	}
	if cfg.ToolMaxRetries != 3 {
		t.Fatalf("ToolMaxRetries = %d, want 3", cfg.ToolMaxRetries)
	}
	if cfg.ToolBaseDelay != 200*time.Millisecond {
		t.Fatalf("ToolBaseDelay = %v, want 200ms", cfg.ToolBaseDelay)
	}
	if cfg.ToolMaxDelay != 5*time.Second {
		t.Fatalf("ToolMaxDelay = %v, want 5s", cfg.ToolMaxDelay)
	}
	if cfg.ToolTimeout != 10*time.Second {
		t.Fatalf("ToolTimeout = %v, want 10s", cfg.ToolTimeout)
	}
	if cfg.ToolCacheTTL != 5*time.Minute {
		t.Fatalf("ToolCacheTTL = %v, want 5m", cfg.ToolCacheTTL)
	}
	if !cfg.ToolCacheEnabled {
		t.Fatal("ToolCacheEnabled = false, want true")
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
	if cfg.WebSearchBaseURL != "https://api.tavily.com" {
		t.Fatalf("WebSearchBaseURL = %q", cfg.WebSearchBaseURL)
	}
	if cfg.EnrichBaseURL != "https://enrich.pitchline.io" {
		t.Fatalf("EnrichBaseURL = %q", cfg.EnrichBaseURL)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("PITCHLINE_ADDR", ":9090")
	t.Setenv("PITCHLINE_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES", "77777")
	t.Setenv("PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE", "64")
	t.Setenv("PITCHLINE_LIVE_WS_PING_INTERVAL", "9s")
	t.Setenv("PITCHLINE_LIVE_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("PITCHLINE_LIVE_WS_READ_TIMEOUT", "4s")
	t.Setenv("PITCHLINE_LIVE_HEARTBEAT_POLL", "500ms")
	t.Setenv("PITCHLINE_LIVE_HEARTBEAT_INTERVAL", "12s")
	t.Setenv("PITCHLINE_LIVE_IDLE_TIMEOUT", "45s")
	t.Setenv("PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT", "25s")
	t.Setenv("PITCHLINE_LIVE_LANGUAGE_CODE", "fr-FR")
	t.Setenv("PITCHLINE_LIVE_VOICE_NAME", "Charon")
	t.Setenv("PITCHLINE_CONTEXT_CACHE_TTL", "15s")
	t.Setenv("PITCHLINE_CONTEXT_STALE_AFTER", "30m")
	t.Setenv("PITCHLINE_TOOL_MAX_RETRIES", "5")
	t.Setenv("PITCHLINE_TOOL_BASE_DELAY", "100ms")
	t.Setenv("PITCHLINE_TOOL_MAX_DELAY", "8s")
	t.Setenv("PITCHLINE_TOOL_TIMEOUT", "20s")
	t.Setenv("PITCHLINE_TOOL_CACHE_TTL", "10m")
	t.Setenv("PITCHLINE_TOOL_CACHE_ENABLED", "false")
	t.Setenv("PITCHLINE_POSTGRES_DSN", "postgres://localhost/pitchline")
	t.Setenv("PITCHLINE_GEMINI_API_KEY", "key-123")
	t.Setenv("PITCHLINE_GEMINI_LIVE_MODEL", "live-model")
	t.Setenv("PITCHLINE_GEMINI_ANALYSIS_MODEL", "analysis-model")
	t.Setenv("PITCHLINE_WEB_SEARCH_API_KEY", "ws-key")
	t.Setenv("PITCHLINE_WEB_SEARCH_BASE_URL", "https://search.example")
	t.Setenv("PITCHLINE_ENRICH_API_KEY", "en-key")
	t.Setenv("PITCHLINE_ENRICH_BASE_URL", "https://enrich.example")
	t.Setenv("PITCHLINE_READ_HEADER_TIMEOUT", "12s")
	t.Setenv("PITCHLINE_SHUTDOWN_GRACE_PERIOD", "31s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q, want :9090", cfg.Addr)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatal("missing https://b.example")
	}
	if cfg.LiveMaxJSONMessageBytes != 77777 || cfg.LiveOutboundQueueSize != 64 {
		t.Fatalf("live size limits mismatch: %d/%d", cfg.LiveMaxJSONMessageBytes, cfg.LiveOutboundQueueSize)
	}
	if cfg.LiveWSPingInterval != 9*time.Second || cfg.LiveWSWriteTimeout != 3*time.Second || cfg.LiveWSReadTimeout != 4*time.Second {
		t.Fatalf("live ws timeout mismatch: %v/%v/%v", cfg.LiveWSPingInterval, cfg.LiveWSWriteTimeout, cfg.LiveWSReadTimeout)
	}
	if cfg.LiveHeartbeatPoll != 500*time.Millisecond || cfg.LiveHeartbeatInterval != 12*time.Second {
		t.Fatalf("heartbeat mismatch: %v/%v", cfg.LiveHeartbeatPoll, cfg.LiveHeartbeatInterval)
	}
	if cfg.LiveIdleTimeout != 45*time.Second || cfg.LiveToolResultTimeout != 25*time.Second {
		t.Fatalf("live deadlines mismatch: %v/%v", cfg.LiveIdleTimeout, cfg.LiveToolResultTimeout)
	}
	if cfg.LiveLanguageCode != "fr-FR" || cfg.LiveVoiceName != "Charon" {
		t.Fatalf("voice defaults mismatch: %q/%q", cfg.LiveLanguageCode, cfg.LiveVoiceName)
	}
	if cfg.ContextCacheTTL != 15*time.Second || cfg.ContextStaleAfter != 30*time.Minute {
		t.Fatalf("context durations mismatch: %v/%v", cfg.ContextCacheTTL, cfg.ContextStaleAfter)
	}
	if cfg.ToolMaxRetries != 5 || cfg.ToolBaseDelay != 100*time.Millisecond || cfg.ToolMaxDelay != 8*time.Second {
		t.Fatalf("tool retry mismatch: %d/%v/%v", cfg.ToolMaxRetries, cfg.ToolBaseDelay, cfg.ToolMaxDelay)
	}
	if cfg.ToolTimeout != 20*time.Second || cfg.ToolCacheTTL != 10*time.Minute || cfg.ToolCacheEnabled {
		t.Fatalf("tool execution mismatch: %v/%v/%v", cfg.ToolTimeout, cfg.ToolCacheTTL, cfg.ToolCacheEnabled)
	}
	if cfg.PostgresDSN != "postgres://localhost/pitchline" {
		t.Fatalf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.GeminiAPIKey != "key-123" || cfg.GeminiLiveModel != "live-model" || cfg.GeminiAnalysisModel != "analysis-model" {
		t.Fatalf("gemini config mismatch: %q/%q/%q", cfg.GeminiAPIKey, cfg.GeminiLiveModel, cfg.GeminiAnalysisModel)
	}
	if cfg.WebSearchAPIKey != "ws-key" || cfg.WebSearchBaseURL != "https://search.example" {
		t.Fatalf("web search config mismatch: %q/%q", cfg.WebSearchAPIKey, cfg.WebSearchBaseURL)
	}
	if cfg.EnrichAPIKey != "en-key" || cfg.EnrichBaseURL != "https://enrich.example" {
		t.Fatalf("enrich config mismatch: %q/%q", cfg.EnrichAPIKey, cfg.EnrichBaseURL)
	}
	if cfg.ReadHeaderTimeout != 12*time.Second || cfg.ShutdownGracePeriod != 31*time.Second {
		t.Fatalf("server timeouts mismatch: %v/%v", cfg.ReadHeaderTimeout, cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_ParsesCSVOrigins(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("PITCHLINE_CORS_ORIGINS", "https://one.example, https://two.example,,")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://two.example"]; !ok {
		t.Fatal("missing https://two.example")
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name:      "invalid json message limit",
			env:       map[string]string{"PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES": "-1"},
			errSubstr: "PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES",
		},
		{
			name:      "invalid outbound queue size",
			env:       map[string]string{"PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE": "-1"},
			errSubstr: "PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE",
		},
		{
			name:      "invalid ws write timeout",
			env:       map[string]string{"PITCHLINE_LIVE_WS_WRITE_TIMEOUT": "-1s"},
			errSubstr: "PITCHLINE_LIVE_WS_WRITE_TIMEOUT",
		},
		{
			name: "heartbeat interval below poll",
			env: map[string]string{
				"PITCHLINE_LIVE_HEARTBEAT_POLL":     "10s",
				"PITCHLINE_LIVE_HEARTBEAT_INTERVAL": "5s",
			},
			errSubstr: "PITCHLINE_LIVE_HEARTBEAT_INTERVAL must be >=",
		},
		{
			name:      "invalid tool result timeout",
			env:       map[string]string{"PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT": "-1s"},
			errSubstr: "PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT",
		},
		{
			name:      "invalid context stale window",
			env:       map[string]string{"PITCHLINE_CONTEXT_STALE_AFTER": "-1m"},
			errSubstr: "PITCHLINE_CONTEXT_STALE_AFTER",
		},
		{
			name:      "invalid tool retries",
			env:       map[string]string{"PITCHLINE_TOOL_MAX_RETRIES": "-2"},
			errSubstr: "PITCHLINE_TOOL_MAX_RETRIES",
		},
		{
			name: "max delay below base delay",
			env: map[string]string{
				"PITCHLINE_TOOL_BASE_DELAY": "2s",
				"PITCHLINE_TOOL_MAX_DELAY":  "1s",
			},
			errSubstr: "PITCHLINE_TOOL_MAX_DELAY must be >=",
		},
		{
			name:      "invalid shutdown grace period",
			env:       map[string]string{"PITCHLINE_SHUTDOWN_GRACE_PERIOD": "-1s"},
			errSubstr: "PITCHLINE_SHUTDOWN_GRACE_PERIOD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}
