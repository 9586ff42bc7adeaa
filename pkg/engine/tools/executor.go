package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pitchline/pitchline/pkg/engine"
)

// Options controls one execution. Zero fields fall back to the
// executor's defaults.
type Options struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	// MaxRetries is the total attempt budget for retryable failures.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// Result is the outcome of one tool invocation. Immutable once
// returned. Duration covers the underlying call(s) only, never cache
// lookups or backoff sleeps.
type Result struct {
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Data     any           `json:"data,omitempty"`
	Error    *engine.Error `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Cached   bool          `json:"cached"`
	Attempt  int           `json:"attempt"`
}

// Executor runs named tools with caching and bounded retries. It never
// returns a Go error across the boundary: every failure path produces
// a Result with Success=false.
type Executor struct {
	registry *Registry
	cache    *Cache
	logger   *slog.Logger
	defaults Options
}

func NewExecutor(registry *Registry, cache *Cache, logger *slog.Logger, defaults Options) *Executor {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.MaxRetries <= 0 {
		defaults.MaxRetries = 3
	}
	if defaults.BaseDelay <= 0 {
		defaults.BaseDelay = 200 * time.Millisecond
	}
	if defaults.MaxDelay <= 0 {
		defaults.MaxDelay = 5 * time.Second
	}
	if defaults.CacheTTL <= 0 {
		defaults.CacheTTL = 5 * time.Minute
	}
	return &Executor{registry: registry, cache: cache, logger: logger, defaults: defaults}
}

// Cache exposes the executor's cache for lifecycle management
// (Clear on shutdown / test isolation).
func (e *Executor) Cache() *Cache { return e.cache }

// ToolNames lists the registered tools in sorted order.
func (e *Executor) ToolNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *Executor) merged(opts Options) Options {
	out := opts
	if out.MaxRetries <= 0 {
		out.MaxRetries = e.defaults.MaxRetries
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = e.defaults.BaseDelay
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = e.defaults.MaxDelay
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = e.defaults.CacheTTL
	}
	if out.Timeout <= 0 {
		out.Timeout = e.defaults.Timeout
	}
	return out
}

// Execute runs one named tool.
//
// With caching enabled, a live entry for the same (toolName, input)
// short-circuits with Cached=true and Attempt=0 and no side effect.
// Retryable failures (timeout, rate limit, upstream 5xx) back off
// exponentially up to MaxRetries attempts; fatal failures (bad input,
// auth, not found) stop after the one attempt that surfaced them.
func (e *Executor) Execute(ctx context.Context, toolName string, input map[string]any, opts Options) Result {
	toolName = strings.TrimSpace(toolName)
	opts = e.merged(opts)

	tool, ok := e.registry.Get(toolName)
	if !ok {
		return Result{
			Tool:  toolName,
			Error: engine.NewNotFoundError("unknown tool " + toolName),
		}
	}

	key := cacheKey(toolName, input)
	if opts.CacheEnabled {
		if data, hit := e.cache.get(key); hit {
			return Result{Tool: toolName, Success: true, Data: data, Cached: true}
		}
	}

	var (
		attempt  int
		data     any
		lastErr  *engine.Error
		duration time.Duration
	)

	backoff := retry.WithCappedDuration(opts.MaxDelay, retry.NewExponential(opts.BaseDelay))
	backoff = retry.WithMaxRetries(uint64(opts.MaxRetries-1), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		cancel := func() {}
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		start := time.Now()
		out, callErr := tool.Execute(callCtx, input)
		duration += time.Since(start)
		cancel()

		if callErr == nil {
			data = out
			lastErr = nil
			return nil
		}
		lastErr = classify(toolName, callErr)
		if lastErr.IsRetryable() {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})

	if err != nil {
		if lastErr == nil {
			lastErr = classify(toolName, err)
		}
		e.logger.Warn("tool execution failed",
			"tool", toolName,
			"attempt", attempt,
			"error_type", string(lastErr.Type),
			"duration_ms", duration.Milliseconds(),
		)
		return Result{Tool: toolName, Error: lastErr, Duration: duration, Attempt: attempt}
	}

	if opts.CacheEnabled {
		e.cache.put(key, data, opts.CacheTTL)
	}
	return Result{Tool: toolName, Success: true, Data: data, Duration: duration, Attempt: attempt}
}

// classify folds an arbitrary tool error into the engine taxonomy.
// Typed engine errors pass through; context deadlines become timeouts;
// everything else is an upstream failure (treated as retryable).
func classify(toolName string, err error) *engine.Error {
	var typed *engine.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTimeoutError("tool " + toolName + " timed out")
	}
	return engine.NewUpstreamError(toolName, err)
}
