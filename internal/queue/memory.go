package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	custom_errors "snapdocs/internal/errors"
)

// MemoryBackend is a process-local Backend. Jobs are lost on restart.
type MemoryBackend struct {
	mu   sync.Mutex
	seq  int64
	jobs map[string]*memoryJob
}

type memoryJob struct {
	Job
	seq int64
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{jobs: map[string]*memoryJob{}}
}

func (b *MemoryBackend) Add(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	b.seq++
	b.jobs[job.ID] = &memoryJob{Job: *job, seq: b.seq}
	return nil
}

func (b *MemoryBackend) Claim(_ context.Context, queue string, now time.Time) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var next *memoryJob
	for _, j := range b.jobs {
		if j.Queue != queue || j.Status != StatusWaiting || j.RunAfter.After(now) {
			continue
		}
		if next == nil || j.RunAfter.Before(next.RunAfter) ||
			(j.RunAfter.Equal(next.RunAfter) && j.seq < next.seq) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}
	next.Status = StatusActive
	next.UpdatedAt = now
	claimed := next.Job
	return &claimed, nil
}

func (b *MemoryBackend) update(id string, fn func(j *memoryJob)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return custom_errors.ErrNotFound
	}
	fn(j)
	return nil
}

func (b *MemoryBackend) Complete(_ context.Context, id string, attemptsMade int, now time.Time) error {
	return b.update(id, func(j *memoryJob) {
		j.Status = StatusCompleted
		j.AttemptsMade = attemptsMade
		j.UpdatedAt = now
		j.FinishedAt = &now
	})
}

func (b *MemoryBackend) Retry(_ context.Context, id string, attemptsMade int, lastError string, runAfter, now time.Time) error {
	return b.update(id, func(j *memoryJob) {
		j.Status = StatusWaiting
		j.AttemptsMade = attemptsMade
		j.LastError = lastError
		j.RunAfter = runAfter
		j.UpdatedAt = now
	})
}

func (b *MemoryBackend) Fail(_ context.Context, id string, attemptsMade int, lastError string, now time.Time) error {
	return b.update(id, func(j *memoryJob) {
		j.Status = StatusFailed
		j.AttemptsMade = attemptsMade
		j.LastError = lastError
		j.UpdatedAt = now
		j.FinishedAt = &now
	})
}

func (b *MemoryBackend) Prune(_ context.Context, queue string, status Status, keep int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var terminal []*memoryJob
	for _, j := range b.jobs {
		if j.Queue == queue && j.Status == status {
			terminal = append(terminal, j)
		}
	}
	if len(terminal) <= keep {
		return 0, nil
	}
	// Newest first; everything past keep goes.
	sort.Slice(terminal, func(i, k int) bool {
		fi, fk := terminal[i].FinishedAt, terminal[k].FinishedAt
		if fi != nil && fk != nil && !fi.Equal(*fk) {
			return fi.After(*fk)
		}
		return terminal[i].seq > terminal[k].seq
	})
	var removed int64
	for _, j := range terminal[keep:] {
		delete(b.jobs, j.ID)
		removed++
	}
	return removed, nil
}

func (b *MemoryBackend) Counts(_ context.Context, queue string) (Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var c Counts
	for _, j := range b.jobs {
		if j.Queue != queue {
			continue
		}
		switch j.Status {
		case StatusWaiting:
			c.Waiting++
		case StatusActive:
			c.Active++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (b *MemoryBackend) RecoverStalled(_ context.Context, now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, j := range b.jobs {
		if j.Status == StatusActive {
			j.Status = StatusWaiting
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the job with the given id.
func (b *MemoryBackend) Get(id string) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return nil, custom_errors.ErrNotFound
	}
	out := j.Job
	return &out, nil
}
