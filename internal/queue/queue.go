package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"snapdocs/internal/model"
)

// Handler runs one attempt of a job. A non-nil error schedules a retry until
// the job's attempts are exhausted.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

// Queue enqueues jobs and runs one worker per logical queue.
type Queue struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	signals map[string]chan struct{}
}

func New(backend Backend, opts Options, logger *slog.Logger) *Queue {
	defaults := DefaultOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaults.Backoff
	}
	if opts.KeepCompleted < 0 {
		opts.KeepCompleted = defaults.KeepCompleted
	}
	if opts.KeepFailed < 0 {
		opts.KeepFailed = defaults.KeepFailed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}

	signals := make(map[string]chan struct{}, len(Names))
	for _, name := range Names {
		signals[name] = make(chan struct{}, 1)
	}
	return &Queue{
		backend: backend,
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		signals: signals,
	}
}

// Enqueue adds a job to the queue that carries its name and returns the job id.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	queueName, err := model.QueueFor(name)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", name, err)
	}

	now := q.now()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Name:        name,
		Payload:     data,
		Status:      StatusWaiting,
		MaxAttempts: q.opts.Attempts,
		Backoff:     q.opts.Backoff,
		RunAfter:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.backend.Add(ctx, job); err != nil {
		return "", err
	}
	jobsEnqueued.WithLabelValues(queueName, name).Inc()
	q.logger.Debug("Job enqueued", "queue", queueName, "job", name, "job_id", job.ID)

	select {
	case q.signals[queueName] <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// Run recovers stalled jobs and then works every queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, h Handler) error {
	n, err := q.backend.RecoverStalled(ctx, q.now())
	if err != nil {
		return err
	}
	if n > 0 {
		q.logger.Warn("Returned stalled jobs to waiting", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range Names {
		g.Go(func() error {
			q.work(gctx, name, h)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) work(ctx context.Context, queueName string, h Handler) {
	logger := q.logger.With("queue", queueName)
	logger.Info("Starting queue worker", "poll_interval", q.opts.PollInterval.String())

	for {
		if ctx.Err() != nil {
			logger.Info("Queue worker shutting down", "reason", ctx.Err())
			return
		}

		processed, err := q.RunOnce(ctx, queueName, h)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Queue worker iteration failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
		case <-q.signals[queueName]:
		case <-time.After(q.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes a single job from queueName. It reports whether
// a job was processed, regardless of the handler's outcome.
func (q *Queue) RunOnce(ctx context.Context, queueName string, h Handler) (bool, error) {
	job, err := q.backend.Claim(ctx, queueName, q.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	logger := q.logger.With("queue", job.Queue, "job", job.Name, "job_id", job.ID)
	attempt := job.AttemptsMade + 1
	logger.Info("Processing job", "attempt", attempt, "max_attempts", job.MaxAttempts)

	start := time.Now()
	handlerErr := h.Handle(ctx, job)
	jobDuration.WithLabelValues(job.Queue, job.Name).Observe(time.Since(start).Seconds())

	now := q.now()
	switch {
	case handlerErr == nil:
		if err := q.backend.Complete(ctx, job.ID, attempt, now); err != nil {
			return true, fmt.Errorf("completing job %s: %w", job.ID, err)
		}
		jobsProcessed.WithLabelValues(job.Queue, job.Name, string(StatusCompleted)).Inc()
		logger.Info("Job completed", "attempt", attempt)
		return true, q.prune(ctx, job.Queue, StatusCompleted, q.opts.KeepCompleted)

	case attempt < job.MaxAttempts && !IsUnrecoverable(handlerErr):
		delay := RetryDelay(job.Backoff, attempt)
		if err := q.backend.Retry(ctx, job.ID, attempt, handlerErr.Error(), now.Add(delay), now); err != nil {
			return true, fmt.Errorf("rescheduling job %s: %w", job.ID, err)
		}
		jobsProcessed.WithLabelValues(job.Queue, job.Name, "retried").Inc()
		logger.Warn("Job failed, retrying", "attempt", attempt, "retry_in", delay.String(), "error", handlerErr)
		return true, nil

	default:
		if err := q.backend.Fail(ctx, job.ID, attempt, handlerErr.Error(), now); err != nil {
			return true, fmt.Errorf("failing job %s: %w", job.ID, err)
		}
		jobsProcessed.WithLabelValues(job.Queue, job.Name, string(StatusFailed)).Inc()
		logger.Error("Job failed", "attempt", attempt, "unrecoverable", IsUnrecoverable(handlerErr), "error", handlerErr)
		return true, q.prune(ctx, job.Queue, StatusFailed, q.opts.KeepFailed)
	}
}

func (q *Queue) prune(ctx context.Context, queueName string, status Status, keep int) error {
	n, err := q.backend.Prune(ctx, queueName, status, keep)
	if err != nil {
		return err
	}
	if n > 0 {
		q.logger.Debug("Pruned terminal jobs", "queue", queueName, "status", status, "count", n)
	}
	return nil
}

// Stats returns the per-status counts of every queue and refreshes the gauges.
func (q *Queue) Stats(ctx context.Context) (map[string]Counts, error) {
	out := make(map[string]Counts, len(Names))
	for _, name := range Names {
		c, err := q.backend.Counts(ctx, name)
		if err != nil {
			return nil, err
		}
		recordCounts(name, c)
		out[name] = c
	}
	return out, nil
}
