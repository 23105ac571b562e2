package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"snapdocs/internal/aiguard"
	"snapdocs/internal/api"
	"snapdocs/internal/config"
	"snapdocs/internal/database"
	"snapdocs/internal/docs"
	"snapdocs/internal/github"
	"snapdocs/internal/queue"
	"snapdocs/internal/syncer"
	"snapdocs/internal/webhook"
	"snapdocs/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// sourceProvider is everything the services need from GitHub.
type sourceProvider interface {
	syncer.SourceProvider
	docs.SourceProvider
}

// app holds the assembled components of a running service.
type app struct {
	router     http.Handler
	queue      *queue.Queue
	dispatcher *worker.Dispatcher
	scheduler  *syncer.Scheduler
}

// newApp wires the services over an open pool. The provider and generator are
// passed in so tests can substitute them.
func newApp(cfg *config.Config, dbpool *pgxpool.Pool, provider sourceProvider, ai aiguard.Generator, logger *slog.Logger) *app {
	store := database.New(dbpool)

	var backend queue.Backend = queue.NewPostgresBackend(dbpool)
	if cfg.QueueBackend == "memory" {
		backend = queue.NewMemoryBackend()
	}
	q := queue.New(backend, queue.Options{
		Attempts:      cfg.JobAttempts,
		Backoff:       cfg.JobBackoff,
		KeepCompleted: cfg.JobKeepCompleted,
		KeepFailed:    cfg.JobKeepFailed,
		PollInterval:  cfg.QueuePollInterval,
	}, logger)

	appSyncer := syncer.NewSyncer(store, dbpool, provider, q, cfg.StaleThreshold, logger)
	docService := docs.NewService(store, provider, ai, cfg.SummaryDiffBudget, logger)

	return &app{
		router: api.NewRouter(api.Dependencies{
			DB:       store,
			Verifier: webhook.NewVerifier(cfg.GithubWebhookSecret, logger),
			Events:   webhook.NewRouter(store, q, logger),
			Syncer:   appSyncer,
			Queue:    q,
		}, logger),
		queue:      q,
		dispatcher: worker.NewDispatcher(docService, appSyncer, logger),
		scheduler:  syncer.NewScheduler(store, q, cfg.SyncInterval, cfg.HealthCheckInterval, logger),
	}
}

// newGenerator builds the guarded Gemini generator. Free-tier keys get the daily quota.
func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (aiguard.Generator, error) {
	gemini, err := aiguard.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		return nil, err
	}
	var quota *aiguard.QuotaState
	if cfg.FreeTierAI() {
		quota = aiguard.NewQuotaState(cfg.AIDailyLimit, aiguard.SystemClock)
		logger.Info("AI daily quota enabled", "limit", cfg.AIDailyLimit)
	}
	return aiguard.NewGuard(gemini, quota, aiguard.NewPacer(cfg.AIMinInterval), logger), nil
}

func run() error {
	// 1. Initialize structured logger
	logger, logLevel := newLogger()

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "queue_backend", cfg.QueueBackend, "github_app", cfg.UsesGithubApp())

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := database.Migrate(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	ghClient, err := github.NewClient(github.Options{
		AppID:      cfg.GithubAppID,
		PrivateKey: []byte(cfg.GithubPrivateKey),
		Token:      cfg.GithubToken,
		BaseURL:    cfg.GithubAPIURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	ai, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI client: %w", err)
	}
	a := newApp(cfg, dbpool, ghClient, ai, logger)

	// 6. Start the server, queue workers and scheduler
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: a.router,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.queue.Run(gctx, a.dispatcher)
	})
	g.Go(func() error {
		a.scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received. Draining.")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	// 7. Wait for shutdown
	logger.Info("Application started. Waiting for shutdown signal...")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
