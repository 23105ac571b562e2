package aiguard

import (
	"context"
	"time"
)

// Pacer sleeps a fixed interval before every call.
type Pacer struct {
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, sleep: sleepContext}
}

// Wait blocks for the pacing interval or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.interval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
