// Package aiguard puts a daily quota and fixed pacing in front of the AI text generator.
package aiguard

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Clock supplies the current time. Day boundaries are taken in the clock's location.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// QuotaExceededError is returned once the daily limit is spent. It is the
// HTTP 429 equivalent and must not be retried within the same attempt.
type QuotaExceededError struct {
	Day   string
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily AI quota exceeded (%d/%d on %s)", e.Used, e.Limit, e.Day)
}

// IsQuotaExceeded reports whether err wraps a *QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var target *QuotaExceededError
	return errors.As(err, &target)
}

// QuotaState is a process-local daily request counter. It is not shared
// between instances.
type QuotaState struct {
	mu    sync.Mutex
	clock Clock
	limit int
	day   string
	count int
}

func NewQuotaState(limit int, clock Clock) *QuotaState {
	if clock == nil {
		clock = SystemClock
	}
	return &QuotaState{
		clock: clock,
		limit: limit,
		day:   dayOf(clock.Now()),
	}
}

func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Acquire counts one request against today's quota. It resets the counter when
// the calendar day has changed since the last call.
func (q *QuotaState) Acquire() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if today := dayOf(q.clock.Now()); today != q.day {
		q.day = today
		q.count = 0
	}

	q.count++
	if q.count > q.limit {
		return &QuotaExceededError{Day: q.day, Used: q.count, Limit: q.limit}
	}
	return nil
}

// Usage returns the current day and the number of requests counted on it.
func (q *QuotaState) Usage() (day string, used, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if today := dayOf(q.clock.Now()); today != q.day {
		return today, 0, q.limit
	}
	return q.day, q.count, q.limit
}
