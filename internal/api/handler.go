// internal/api/handler.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snapdocs/internal/database"
	"snapdocs/internal/queue"
	"snapdocs/internal/webhook"
)

// EventRouter applies a verified webhook delivery.
type EventRouter interface {
	Route(ctx context.Context, eventType, deliveryID string, body []byte) webhook.Response
}

// StaleSyncer queues a background sync for users whose data is stale.
type StaleSyncer interface {
	Stale(user database.User) bool
	TriggerIfStale(ctx context.Context, user database.User) bool
}

// JobQueue enqueues jobs and reports queue statistics.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
	Stats(ctx context.Context) (map[string]queue.Counts, error)
}

// Dependencies are the collaborators the API serves.
type Dependencies struct {
	DB       database.Querier
	Verifier *webhook.Verifier
	Events   EventRouter
	Syncer   StaleSyncer
	Queue    JobQueue
}

// Handler is the container for API dependencies.
type Handler struct {
	db       database.Querier
	verifier *webhook.Verifier
	events   EventRouter
	syncer   StaleSyncer
	queue    JobQueue
	logger   *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:       deps.DB,
		verifier: deps.Verifier,
		events:   deps.Events,
		syncer:   deps.Syncer,
		queue:    deps.Queue,
		logger:   logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/github", h.githubWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queues/stats", h.queueStats)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Put("/", h.upsertUser)
			r.Put("/installation", h.linkInstallation)
			r.Delete("/installation", h.unlinkInstallation)
			r.Get("/repositories", h.listRepositories)
			r.Get("/pull-requests", h.listPullRequests)
			r.Get("/stats", h.userStats)
			r.Get("/sync-status", h.syncStatus)
			r.Post("/sync", h.triggerSync)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queueStats reports per-queue job counts.
// GET /v1/queues/stats
func (h *Handler) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read queue statistics", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
