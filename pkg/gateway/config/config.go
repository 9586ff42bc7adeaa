package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket sessions (/v1/live).
	LiveMaxJSONMessageBytes int64
	LiveOutboundQueueSize   int
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveWSReadTimeout       time.Duration
	LiveHeartbeatPoll       time.Duration
	LiveHeartbeatInterval   time.Duration
	LiveIdleTimeout         time.Duration
	LiveToolResultTimeout   time.Duration
	LiveLanguageCode        string
	LiveVoiceName           string

	// Intelligence context store.
	ContextCacheTTL   time.Duration
	ContextStaleAfter time.Duration

	// Tool execution.
	ToolMaxRetries   int
	ToolBaseDelay    time.Duration
	ToolMaxDelay     time.Duration
	ToolTimeout      time.Duration
	ToolCacheTTL     time.Duration
	ToolCacheEnabled bool

	// Postgres context backend. Empty DSN selects the in-memory backend.
	PostgresDSN string

	// Model upstream.
	GeminiAPIKey        string
	GeminiLiveModel     string
	GeminiAnalysisModel string

	// Tool adapter backends.
	WebSearchAPIKey  string
	WebSearchBaseURL string
	EnrichAPIKey     string
	EnrichBaseURL    string

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("PITCHLINE_ADDR", ":8080"),
		CORSAllowedOrigins:      make(map[string]struct{}),
		LiveMaxJSONMessageBytes: envInt64Or("PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES", 256*1024),
		LiveOutboundQueueSize:   envIntOr("PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE", 128),
		LiveWSPingInterval:      envDurationOr("PITCHLINE_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("PITCHLINE_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:       envDurationOr("PITCHLINE_LIVE_WS_READ_TIMEOUT", 0),
		LiveHeartbeatPoll:       envDurationOr("PITCHLINE_LIVE_HEARTBEAT_POLL", time.Second),
		LiveHeartbeatInterval:   envDurationOr("PITCHLINE_LIVE_HEARTBEAT_INTERVAL", 30*time.Second),
		LiveIdleTimeout:         envDurationOr("PITCHLINE_LIVE_IDLE_TIMEOUT", 90*time.Second),
		LiveToolResultTimeout:   envDurationOr("PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT", 30*time.Second),
		LiveLanguageCode:        envOr("PITCHLINE_LIVE_LANGUAGE_CODE", "en-US"),
		LiveVoiceName:           envOr("PITCHLINE_LIVE_VOICE_NAME", "Aoede"),
		ContextCacheTTL:         envDurationOr("PITCHLINE_CONTEXT_CACHE_TTL", 30*time.Second),
		ContextStaleAfter:       envDurationOr("PITCHLINE_CONTEXT_STALE_AFTER", 10*time.Minute),
		ToolMaxRetries:          envIntOr("PITCHLINE_TOOL_MAX_RETRIES", 3),
		ToolBaseDelay:           envDurationOr("PITCHLINE_TOOL_BASE_DELAY", 200*time.Millisecond),
		ToolMaxDelay:            envDurationOr("PITCHLINE_TOOL_MAX_DELAY", 5*time.Second),
		ToolTimeout:             envDurationOr("PITCHLINE_TOOL_TIMEOUT", 10*time.Second),
		ToolCacheTTL:            envDurationOr("PITCHLINE_TOOL_CACHE_TTL", 5*time.Minute),
		ToolCacheEnabled:        envBoolOr("PITCHLINE_TOOL_CACHE_ENABLED", true),
		PostgresDSN:             envOr("PITCHLINE_POSTGRES_DSN", ""),
		GeminiAPIKey:            envOr("PITCHLINE_GEMINI_API_KEY", ""),
		GeminiLiveModel:         envOr("PITCHLINE_GEMINI_LIVE_MODEL", ""),
		GeminiAnalysisModel:     envOr("PITCHLINE_GEMINI_ANALYSIS_MODEL", ""),
		WebSearchAPIKey:         envOr("PITCHLINE_WEB_SEARCH_API_KEY", ""),
		WebSearchBaseURL:        envOr("PITCHLINE_WEB_SEARCH_BASE_URL", "https://api.tavily.com"),
		EnrichAPIKey:            envOr("PITCHLINE_ENRICH_API_KEY", ""),
		EnrichBaseURL:           envOr("PITCHLINE_ENRICH_BASE_URL", "https://enrich.pitchline.io"),
		ReadHeaderTimeout:       envDurationOr("PITCHLINE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:     envDurationOr("PITCHLINE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("PITCHLINE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveOutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.LiveHeartbeatPoll <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_HEARTBEAT_POLL must be > 0")
	}
	if cfg.LiveHeartbeatInterval < cfg.LiveHeartbeatPoll {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_HEARTBEAT_INTERVAL must be >= PITCHLINE_LIVE_HEARTBEAT_POLL")
	}
	if cfg.LiveIdleTimeout < 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_IDLE_TIMEOUT must be >= 0")
	}
	if cfg.LiveToolResultTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_LIVE_TOOL_RESULT_TIMEOUT must be > 0")
	}
	if cfg.ContextCacheTTL < 0 {
		return Config{}, fmt.Errorf("PITCHLINE_CONTEXT_CACHE_TTL must be >= 0")
	}
	if cfg.ContextStaleAfter <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_CONTEXT_STALE_AFTER must be > 0")
	}
	if cfg.ToolMaxRetries <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_TOOL_MAX_RETRIES must be > 0")
	}
	if cfg.ToolBaseDelay <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_TOOL_BASE_DELAY must be > 0")
	}
	if cfg.ToolMaxDelay < cfg.ToolBaseDelay {
		return Config{}, fmt.Errorf("PITCHLINE_TOOL_MAX_DELAY must be >= PITCHLINE_TOOL_BASE_DELAY")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_TOOL_TIMEOUT must be > 0")
	}
	if cfg.ToolCacheTTL <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_TOOL_CACHE_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.WebSearchBaseURL) == "" {
		return Config{}, fmt.Errorf("PITCHLINE_WEB_SEARCH_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.EnrichBaseURL) == "" {
		return Config{}, fmt.Errorf("PITCHLINE_ENRICH_BASE_URL must not be empty")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("PITCHLINE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
