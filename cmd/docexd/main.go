package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/linkenthegreat/docex/internal/domain"
	"github.com/linkenthegreat/docex/internal/executor"
	"github.com/linkenthegreat/docex/internal/http/handlers"
	httpapi "github.com/linkenthegreat/docex/internal/http/httpapi"
	"github.com/linkenthegreat/docex/internal/infra"
	"github.com/linkenthegreat/docex/internal/jobs"
	"github.com/linkenthegreat/docex/internal/prober"
	"github.com/linkenthegreat/docex/internal/providers"
	"github.com/linkenthegreat/docex/internal/providers/githubmodels"
	"github.com/linkenthegreat/docex/internal/providers/ollama"
	"github.com/linkenthegreat/docex/internal/resolver"
	"github.com/linkenthegreat/docex/internal/selector"
	"github.com/linkenthegreat/docex/internal/stats"
	"github.com/linkenthegreat/docex/internal/store"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when configured, JSON files otherwise.
	var jobStore domain.JobStore
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		pgStore := store.NewPostgresStore(dbpool, logger)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure job schema")
		}
		jobStore = pgStore
		logger.Info().Msg("using postgres job store")
	} else {
		fileStore, err := store.NewFileStore(cfg.JobDataDir, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open job data dir")
		}
		jobStore = fileStore
		logger.Info().Str("dir", cfg.JobDataDir).Msg("using file job store")
	}

	registry := jobs.NewRegistry(jobStore, logger)
	restored, err := registry.Restore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to restore jobs")
	}
	logger.Info().Int("count", restored).Msg("restored persisted jobs")

	tracker := stats.NewTracker()
	tracker.Rebuild(registry.List(""))

	ollamaClient := ollama.New(ollama.Options{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.OllamaModel,
	})
	githubClient := githubmodels.New(githubmodels.Options{
		Endpoint: cfg.GitHubModelsEndpoint,
		Token:    cfg.GitHubModelsToken,
	})

	probe := prober.New([]providers.Provider{ollamaClient, githubClient}, prober.Options{
		TTL:     cfg.ProbeTTL,
		Timeout: cfg.ProbeTimeout,
		Logger:  logger,
	})

	sel := selector.New([]selector.Strategy{
		{Name: ollamaClient.Name(), Models: ollamaClient.Models(), Local: true},
		{Name: githubClient.Name(), Models: githubClient.Models()},
	}, ollamaClient.Name())

	exec := executor.New(ctx, executor.Options{
		Registry: registry,
		Resolver: resolver.NewFSResolver(cfg.DocumentDirs),
		Selector: sel,
		Prober:   probe,
		Tracker:  tracker,
		Providers: map[string]providers.Provider{
			ollamaClient.Name(): ollamaClient,
			githubClient.Name(): githubClient,
		},
		AttemptTimeout: cfg.AttemptTimeout,
		Logger:         logger,
	})

	// Terminal jobs older than the retention age are reaped periodically.
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.Cleanup(ctx, cfg.JobRetentionAge)
			}
		}
	}()

	app := handlers.NewApp(exec, registry, tracker, probe, logger)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	cancel()
	logger.Info().Msg("server stopped")
}
