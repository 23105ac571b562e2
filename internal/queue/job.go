// Package queue is a durable, retrying job queue with one worker per logical queue.
package queue

import (
	"encoding/json"
	"errors"
	"time"

	"snapdocs/internal/model"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Names lists the logical queues, each served by exactly one worker.
var Names = []string{model.QueueSyncRepositories, model.QueueGenerateDocs}

// Job is one unit of work as held by a Backend.
type Job struct {
	ID           string
	Queue        string
	Name         string
	Payload      json.RawMessage
	Status       Status
	AttemptsMade int
	MaxAttempts  int
	Backoff      time.Duration
	RunAfter     time.Time
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// UnrecoverableError marks a handler error that fails the job without further attempts.
type UnrecoverableError struct {
	Err error
}

func (e *UnrecoverableError) Error() string { return e.Err.Error() }

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// Unrecoverable wraps err so the queue fails the job on this attempt.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &UnrecoverableError{Err: err}
}

// IsUnrecoverable reports whether err wraps an *UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var target *UnrecoverableError
	return errors.As(err, &target)
}

// RetryDelay is the wait before the next attempt once attemptsMade attempts have failed:
// base·2^(attemptsMade−1).
func RetryDelay(base time.Duration, attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		return base
	}
	return base << (attemptsMade - 1)
}

// Counts is the per-status job count of one queue.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Options are the enqueue and retention defaults applied to every job.
type Options struct {
	Attempts      int
	Backoff       time.Duration
	KeepCompleted int
	KeepFailed    int
	PollInterval  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		Backoff:       2 * time.Second,
		KeepCompleted: 100,
		KeepFailed:    50,
		PollInterval:  500 * time.Millisecond,
	}
}
