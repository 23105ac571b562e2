// Package worker routes queued jobs to the services that process them.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"snapdocs/internal/aiguard"
	custom_errors "snapdocs/internal/errors"
	"snapdocs/internal/model"
	"snapdocs/internal/queue"
)

// DocsGenerator produces documentation and summaries.
type DocsGenerator interface {
	GenerateDocs(ctx context.Context, p model.GenerateDocsPayload) error
	GenerateSummary(ctx context.Context, p model.GenerateSummaryPayload) error
}

// RepositorySyncer reconciles a user's repositories.
type RepositorySyncer interface {
	SyncRepositories(ctx context.Context, userID string) error
}

// Dispatcher is the queue.Handler for every job name.
type Dispatcher struct {
	docs   DocsGenerator
	syncer RepositorySyncer
	logger *slog.Logger
}

var _ queue.Handler = (*Dispatcher)(nil)

func NewDispatcher(docs DocsGenerator, syncer RepositorySyncer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{docs: docs, syncer: syncer, logger: logger}
}

// Handle decodes the job payload and runs the matching service. Unknown job
// names and invalid payloads fail the attempt.
func (d *Dispatcher) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case model.JobSyncRepositories:
		p, err := decode[model.SyncRepositoriesPayload](job)
		if err != nil {
			return err
		}
		return d.syncer.SyncRepositories(ctx, p.UserID)

	case model.JobGenerateSummary:
		p, err := decode[model.GenerateSummaryPayload](job)
		if err != nil {
			return err
		}
		return finalOnQuota(d.docs.GenerateSummary(ctx, p))

	case model.JobGenerateDocs:
		p, err := decode[model.GenerateDocsPayload](job)
		if err != nil {
			return err
		}
		return finalOnQuota(d.docs.GenerateDocs(ctx, p))

	default:
		d.logger.Error("Unknown job name", "job", job.Name, "job_id", job.ID, "queue", job.Queue)
		return fmt.Errorf("unknown job name %q", job.Name)
	}
}

// finalOnQuota fails the job outright once the daily AI quota is spent.
func finalOnQuota(err error) error {
	if aiguard.IsQuotaExceeded(err) {
		return queue.Unrecoverable(err)
	}
	return err
}

type validator interface {
	Validate() error
}

func decode[T validator](job *queue.Job) (T, error) {
	var p T
	if err := job.Decode(&p); err != nil {
		return p, &custom_errors.ErrInvalidPayload{Kind: job.Name, Reason: err.Error()}
	}
	if err := p.Validate(); err != nil {
		return p, &custom_errors.ErrInvalidPayload{Kind: job.Name, Reason: err.Error()}
	}
	return p, nil
}
