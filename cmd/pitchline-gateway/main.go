package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pitchline/pitchline/internal/dotenv"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/enrich"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/fetch"
	"github.com/pitchline/pitchline/pkg/engine/tools/adapters/websearch"
	"github.com/pitchline/pitchline/pkg/gateway/config"
	"github.com/pitchline/pitchline/pkg/gateway/live/session"
	gatewayserver "github.com/pitchline/pitchline/pkg/gateway/server"
	"github.com/pitchline/pitchline/pkg/gateway/upstream/gemini"
	"github.com/pitchline/pitchline/pkg/store/postgres"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildEngine  func(context.Context, config.Config, *slog.Logger) (gatewayserver.Dependencies, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:  config.LoadFromEnv,
		buildEngine: buildEngine,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildEngine assembles the context store, tool executor, and model
// upstream from configuration. The returned cleanup closes whatever
// was opened (today that is the postgres pool, when one is in use).
func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (gatewayserver.Dependencies, func(), error) {
	cleanup := func() {}

	var (
		backend     salescontext.Backend
		backendName string
	)
	if cfg.PostgresDSN != "" {
		if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
			return gatewayserver.Dependencies{}, cleanup, err
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return gatewayserver.Dependencies{}, cleanup, err
		}
		cleanup = pool.Close
		backend = postgres.New(pool)
		backendName = "postgres"
	} else {
		backend = salescontext.NewMemoryBackend()
		backendName = "memory"
	}

	contexts := salescontext.NewStore(backend, salescontext.Config{
		CacheTTL:   cfg.ContextCacheTTL,
		StaleAfter: cfg.ContextStaleAfter,
	})

	var (
		upstream    session.Upstream = session.MockUpstream{}
		liveEnabled bool
		analyzer    tools.Analyzer
	)
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:        cfg.GeminiAPIKey,
			LiveModel:     cfg.GeminiLiveModel,
			AnalysisModel: cfg.GeminiAnalysisModel,
		}, logger)
		if err != nil {
			cleanup()
			return gatewayserver.Dependencies{}, func() {}, err
		}
		upstream = client
		analyzer = client
		liveEnabled = true
	} else {
		logger.Warn("gemini api key not configured, only mock sessions will work")
	}

	registered := []tools.Tool{tools.NewROICalculatorTool()}
	if cfg.WebSearchAPIKey != "" {
		client := websearch.NewClient(cfg.WebSearchAPIKey, cfg.WebSearchBaseURL, nil)
		registered = append(registered, tools.NewWebSearchTool(client))
	}
	if cfg.EnrichAPIKey != "" {
		client := enrich.NewClient(cfg.EnrichAPIKey, cfg.EnrichBaseURL, nil)
		registered = append(registered,
			tools.NewCompanyEnrichTool(client),
			tools.NewPersonEnrichTool(client),
		)
	}
	if analyzer != nil {
		registered = append(registered,
			tools.NewURLAnalysisTool(fetch.NewClient(nil), analyzer),
			tools.NewDocumentAnalysisTool(analyzer),
			tools.NewVisionAnalysisTool(analyzer),
		)
	}
	registry := tools.NewRegistry(registered...)

	executor := tools.NewExecutor(registry, tools.NewCache(), logger, tools.Options{
		CacheEnabled: cfg.ToolCacheEnabled,
		CacheTTL:     cfg.ToolCacheTTL,
		MaxRetries:   cfg.ToolMaxRetries,
		BaseDelay:    cfg.ToolBaseDelay,
		MaxDelay:     cfg.ToolMaxDelay,
		Timeout:      cfg.ToolTimeout,
	})

	logger.Info("engine assembled",
		"context_backend", backendName,
		"live_enabled", liveEnabled,
		"tools", registry.Names(),
	)

	return gatewayserver.Dependencies{
		Upstream:       upstream,
		Executor:       executor,
		Contexts:       contexts,
		ContextBackend: backendName,
		LiveEnabled:    liveEnabled,
	}, cleanup, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildEngine == nil {
		return errors.New("missing buildEngine dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engineDeps, cleanup, err := deps.buildEngine(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer cleanup()

	gw := gatewayserver.New(cfg, logger, engineDeps)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"live_enabled", engineDeps.LiveEnabled,
		"context_backend", engineDeps.ContextBackend,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining(true)
	gw.WarnLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitLiveSessions(waitCtx) {
		gw.CancelLiveSessions()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "pitchline-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "pitchline-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
