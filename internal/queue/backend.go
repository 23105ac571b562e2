package queue

import (
	"context"
	"time"
)

// Backend stores jobs. Implementations must make Claim atomic so that a job is
// handed to at most one worker.
type Backend interface {
	Add(ctx context.Context, job *Job) error
	// Claim moves the oldest runnable waiting job of queue to active. It returns
	// nil, nil when nothing is runnable.
	Claim(ctx context.Context, queue string, now time.Time) (*Job, error)
	Complete(ctx context.Context, id string, attemptsMade int, now time.Time) error
	Retry(ctx context.Context, id string, attemptsMade int, lastError string, runAfter, now time.Time) error
	Fail(ctx context.Context, id string, attemptsMade int, lastError string, now time.Time) error
	// Prune deletes the oldest terminal jobs of queue beyond keep.
	Prune(ctx context.Context, queue string, status Status, keep int) (int64, error)
	Counts(ctx context.Context, queue string) (Counts, error)
	// RecoverStalled returns jobs left active by a previous process to waiting.
	RecoverStalled(ctx context.Context, now time.Time) (int64, error)
}
