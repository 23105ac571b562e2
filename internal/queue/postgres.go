package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	custom_errors "snapdocs/internal/errors"
)

// DBTX is the subset of pgxpool.Pool the backend needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend keeps jobs in the jobs table. Claims use FOR UPDATE SKIP LOCKED.
type PostgresBackend struct {
	db DBTX
}

var _ Backend = (*PostgresBackend)(nil)

func NewPostgresBackend(db DBTX) *PostgresBackend {
	return &PostgresBackend{db: db}
}

const jobColumns = `id, queue, name, payload, status, attempts_made, max_attempts, backoff_ms,
	run_after, last_error, created_at, updated_at, finished_at`

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j         Job
		status    string
		backoffMS int64
	)
	err := row.Scan(
		&j.ID,
		&j.Queue,
		&j.Name,
		&j.Payload,
		&status,
		&j.AttemptsMade,
		&j.MaxAttempts,
		&backoffMS,
		&j.RunAfter,
		&j.LastError,
		&j.CreatedAt,
		&j.UpdatedAt,
		&j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.Backoff = time.Duration(backoffMS) * time.Millisecond
	return &j, nil
}

func (b *PostgresBackend) Add(ctx context.Context, job *Job) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO jobs (id, queue, name, payload, status, attempts_made, max_attempts, backoff_ms, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		job.ID, job.Queue, job.Name, []byte(job.Payload), string(job.Status), job.AttemptsMade,
		job.MaxAttempts, job.Backoff.Milliseconds(), job.RunAfter, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

func (b *PostgresBackend) Claim(ctx context.Context, queue string, now time.Time) (*Job, error) {
	row := b.db.QueryRow(ctx, `
		UPDATE jobs SET status = 'active', updated_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $1 AND status = 'waiting' AND run_after <= $2
			ORDER BY run_after, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns, queue, now)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job from %s: %w", queue, err)
	}
	return job, nil
}

func (b *PostgresBackend) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := b.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return custom_errors.ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) Complete(ctx context.Context, id string, attemptsMade int, now time.Time) error {
	return b.exec(ctx, `
		UPDATE jobs SET status = 'completed', attempts_made = $2, updated_at = $3, finished_at = $3
		WHERE id = $1`, id, attemptsMade, now)
}

func (b *PostgresBackend) Retry(ctx context.Context, id string, attemptsMade int, lastError string, runAfter, now time.Time) error {
	return b.exec(ctx, `
		UPDATE jobs SET status = 'waiting', attempts_made = $2, last_error = $3, run_after = $4, updated_at = $5
		WHERE id = $1`, id, attemptsMade, lastError, runAfter, now)
}

func (b *PostgresBackend) Fail(ctx context.Context, id string, attemptsMade int, lastError string, now time.Time) error {
	return b.exec(ctx, `
		UPDATE jobs SET status = 'failed', attempts_made = $2, last_error = $3, updated_at = $4, finished_at = $4
		WHERE id = $1`, id, attemptsMade, lastError, now)
}

func (b *PostgresBackend) Prune(ctx context.Context, queue string, status Status, keep int) (int64, error) {
	tag, err := b.db.Exec(ctx, `
		DELETE FROM jobs WHERE id IN (
			SELECT id FROM jobs
			WHERE queue = $1 AND status = $2
			ORDER BY finished_at DESC, created_at DESC
			OFFSET $3
		)`, queue, string(status), keep)
	if err != nil {
		return 0, fmt.Errorf("pruning %s jobs from %s: %w", status, queue, err)
	}
	return tag.RowsAffected(), nil
}

func (b *PostgresBackend) Counts(ctx context.Context, queue string) (Counts, error) {
	rows, err := b.db.Query(ctx, `SELECT status, count(*) FROM jobs WHERE queue = $1 GROUP BY status`, queue)
	if err != nil {
		return Counts{}, fmt.Errorf("counting jobs in %s: %w", queue, err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		switch Status(status) {
		case StatusWaiting:
			c.Waiting = n
		case StatusActive:
			c.Active = n
		case StatusCompleted:
			c.Completed = n
		case StatusFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

func (b *PostgresBackend) RecoverStalled(ctx context.Context, now time.Time) (int64, error) {
	tag, err := b.db.Exec(ctx, `UPDATE jobs SET status = 'waiting', updated_at = $1 WHERE status = 'active'`, now)
	if err != nil {
		return 0, fmt.Errorf("recovering stalled jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
