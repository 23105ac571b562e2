package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"snapdocs/internal/database"
	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
)

// Store is the slice of database.Querier the router mutates.
type Store interface {
	GetRepositoryByOwnerAndName(ctx context.Context, arg database.GetRepositoryByOwnerAndNameParams) (database.Repository, error)
	UpsertPullRequest(ctx context.Context, arg database.UpsertPullRequestParams) (database.PullRequest, error)
	MarkPullRequestMerged(ctx context.Context, arg database.MarkPullRequestMergedParams) (int64, error)
	DeletePullRequest(ctx context.Context, arg database.DeletePullRequestParams) (int64, error)
}

// Enqueuer adds a named job to its queue and returns the job id.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

// Response is the envelope returned for every delivery.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

const msgInternalError = "internal error"

// Router dispatches pull_request deliveries to the lifecycle handlers.
type Router struct {
	store  Store
	queue  Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

func NewRouter(store Store, queue Enqueuer, logger *slog.Logger) *Router {
	return &Router{
		store:  store,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// Route handles one verified delivery. It never returns an error; failures are
// logged and reported through the envelope.
func (r *Router) Route(ctx context.Context, eventType, deliveryID string, body []byte) Response {
	logger := r.logger.With("event", eventType, "delivery_id", deliveryID)

	if eventType != EventPullRequest {
		return ignored(eventType, peekAction(body))
	}

	ev, err := ParsePullRequestEvent(body)
	if err != nil {
		logger.Warn("Rejected webhook payload", "error", err)
		return Response{Success: false, Message: "invalid payload"}
	}
	logger = logger.With("action", ev.Action, "owner", ev.Owner, "repo", ev.RepoName, "number", ev.Number)

	switch {
	case ev.Action == ActionOpened || ev.Action == ActionReopened:
		return r.handleOpened(ctx, logger, ev)
	case ev.Action == ActionClosed && ev.Merged:
		return r.handleMerged(ctx, logger, ev)
	case ev.Action == ActionClosed:
		return r.handleClosed(ctx, logger, ev)
	default:
		return ignored(eventType, ev.Action)
	}
}

func ignored(event, action string) Response {
	return Response{
		Success: true,
		Message: "event ignored",
		Data:    map[string]any{"event": event, "action": action},
	}
}

func (r *Router) handleOpened(ctx context.Context, logger *slog.Logger, ev *PullRequestEvent) Response {
	repo, err := r.store.GetRepositoryByOwnerAndName(ctx, database.GetRepositoryByOwnerAndNameParams{
		Owner: ev.Owner,
		Name:  ev.RepoName,
	})
	if err != nil {
		if errors.Is(database.NotFound(err), custom_errors.ErrNotFound) {
			logger.Info("Repository not synced yet, skipping pull request")
			return Response{Success: true, Message: "repository not found, PR not synced"}
		}
		logger.Error("Failed to look up repository", "error", err)
		return Response{Success: false, Message: msgInternalError}
	}

	pr, err := r.store.UpsertPullRequest(ctx, database.UpsertPullRequestParams{
		RepositoryID: repo.ID,
		Number:       int32(ev.Number),
		Title:        ev.Title,
		Author:       ev.Author,
		State:        model.StateOpen,
		HeadSha:      ev.HeadSHA,
	})
	if err != nil {
		logger.Error("Failed to upsert pull request", "error", err)
		return Response{Success: false, Message: msgInternalError}
	}

	if pr.State == model.StateMerged {
		logger.Info("Pull request already merged, summary skipped", "pr_id", pr.ID)
		return Response{
			Success: true,
			Message: "PR already merged, summary skipped",
			Data:    map[string]any{"prId": pr.ID, "number": ev.Number},
		}
	}

	installationID := ev.InstallationID
	if installationID == 0 {
		installationID = repo.InstallationID
	}
	jobID, err := r.queue.Enqueue(ctx, model.JobGenerateSummary, model.GenerateSummaryPayload{
		PullRequestID:  pr.ID,
		Owner:          ev.Owner,
		RepoName:       ev.RepoName,
		Number:         ev.Number,
		Title:          ev.Title,
		Author:         ev.Author,
		InstallationID: installationID,
	})
	if err != nil {
		logger.Error("Failed to enqueue summary job", "pr_id", pr.ID, "error", err)
		return Response{Success: false, Message: msgInternalError}
	}

	logger.Info("Pull request synced, summary queued", "pr_id", pr.ID, "job_id", jobID)
	return Response{
		Success: true,
		Message: "PR synced and summary queued",
		Data:    map[string]any{"prId": pr.ID, "number": ev.Number, "jobId": jobID},
	}
}

func (r *Router) handleMerged(ctx context.Context, logger *slog.Logger, ev *PullRequestEvent) Response {
	mergedAt := r.now().UTC()
	if ev.MergedAt != nil {
		mergedAt = *ev.MergedAt
	}

	n, err := r.store.MarkPullRequestMerged(ctx, database.MarkPullRequestMergedParams{
		Owner:    ev.Owner,
		Name:     ev.RepoName,
		Number:   int32(ev.Number),
		MergedAt: database.Timestamptz(mergedAt),
	})
	if err != nil {
		logger.Error("Failed to mark pull request merged", "error", err)
		return Response{Success: false, Message: msgInternalError}
	}
	if n == 0 {
		// Documentation still runs; the docs job creates the row if the repository is known.
		logger.Warn("Merged pull request not in store")
	}

	jobID, err := r.queue.Enqueue(ctx, model.JobGenerateDocs, model.GenerateDocsPayload{
		Repository: model.RepositorySnapshot{
			ID:       ev.RepoID,
			Name:     ev.RepoName,
			Owner:    ev.Owner,
			FullName: ev.RepoFullName,
		},
		Installation: model.InstallationSnapshot{ID: ev.InstallationID},
		PullRequest: model.PullRequestSnapshot{
			ID:       ev.ID,
			Number:   ev.Number,
			Title:    ev.Title,
			Body:     ev.Body,
			HTMLURL:  ev.HTMLURL,
			Merged:   true,
			MergedAt: &mergedAt,
			Author:   ev.Author,
			AuthorID: ev.AuthorID,
			SHA:      ev.HeadSHA,
			Ref:      ev.HeadRef,
			BaseRef:  ev.BaseRef,
		},
		Timestamp: r.now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to enqueue documentation job", "error", err)
		return Response{Success: false, Message: msgInternalError}
	}

	logger.Info("Pull request merged, documentation queued", "job_id", jobID)
	return Response{
		Success: true,
		Message: "PR merged and documentation queued",
		Data:    map[string]any{"number": ev.Number, "updated": n, "jobId": jobID},
	}
}

func (r *Router) handleClosed(ctx context.Context, logger *slog.Logger, ev *PullRequestEvent) Response {
	n, err := r.store.DeletePullRequest(ctx, database.DeletePullRequestParams{
		Owner:  ev.Owner,
		Name:   ev.RepoName,
		Number: int32(ev.Number),
	})
	if err != nil {
		logger.Error("Failed to delete closed pull request", "error", err)
		return Response{Success: false, Message: msgInternalError}
	}

	logger.Info("Closed pull request removed", "deleted", n)
	return Response{
		Success: true,
		Message: "PR closed and removed",
		Data:    map[string]any{"number": ev.Number, "deleted": n},
	}
}
