package syncer

import (
	"context"
	"log/slog"
	"time"

	"snapdocs/internal/database"
	"snapdocs/internal/model"
	"snapdocs/internal/queue"
)

const (
	failedJobsWarning  = 10
	syncBacklogWarning = 50
)

// UserLister lists users with a linked installation.
type UserLister interface {
	ListConnectedUsers(ctx context.Context) ([]database.User, error)
}

// QueueMonitor exposes queue statistics.
type QueueMonitor interface {
	Enqueuer
	Stats(ctx context.Context) (map[string]queue.Counts, error)
}

// Scheduler periodically queues a repository sync for every connected user
// and reports on queue health.
type Scheduler struct {
	users          UserLister
	queue          QueueMonitor
	logger         *slog.Logger
	syncInterval   time.Duration
	healthInterval time.Duration
}

func NewScheduler(users UserLister, q QueueMonitor, syncInterval, healthInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		users:          users,
		queue:          q,
		logger:         logger,
		syncInterval:   syncInterval,
		healthInterval: healthInterval,
	}
}

// Start runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", "sync_interval", s.syncInterval.String(), "health_interval", s.healthInterval.String())
	syncTicker := time.NewTicker(s.syncInterval)
	defer syncTicker.Stop()
	healthTicker := time.NewTicker(s.healthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-syncTicker.C:
			s.enqueueSyncs(ctx)
		case <-healthTicker.C:
			s.checkHealth(ctx)
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// enqueueSyncs queues one syncRepositories job per connected user and returns
// how many were queued.
func (s *Scheduler) enqueueSyncs(ctx context.Context) int {
	users, err := s.users.ListConnectedUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list connected users", "error", err)
		return 0
	}
	queued := 0
	for _, u := range users {
		if _, err := s.queue.Enqueue(ctx, model.JobSyncRepositories, model.SyncRepositoriesPayload{UserID: u.ID}); err != nil {
			s.logger.Error("Failed to enqueue scheduled sync", "user_id", u.ID, "error", err)
			continue
		}
		queued++
	}
	s.logger.Info("Scheduled sync queued", "users", len(users), "queued", queued)
	return queued
}

// checkHealth logs queue statistics and reports whether they are within limits.
func (s *Scheduler) checkHealth(ctx context.Context) bool {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to read queue statistics", "error", err)
		return false
	}

	var failed int64
	for name, c := range stats {
		failed += c.Failed
		s.logger.Info("Queue statistics", "queue", name, "waiting", c.Waiting, "active", c.Active, "completed", c.Completed, "failed", c.Failed)
	}

	healthy := true
	if failed > failedJobsWarning {
		s.logger.Warn("High number of failed jobs", "failed", failed)
		healthy = false
	}
	sync := stats[model.QueueSyncRepositories]
	if backlog := sync.Waiting + sync.Active; backlog > syncBacklogWarning {
		s.logger.Warn("Sync queue backlog is high", "backlog", backlog)
		healthy = false
	}
	return healthy
}
