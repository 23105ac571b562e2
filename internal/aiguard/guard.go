package aiguard

import (
	"context"
	"errors"
	"log/slog"
)

// ErrProviderRateLimited is returned when the provider itself rejects a call for
// rate or quota reasons.
var ErrProviderRateLimited = errors.New("AI provider rate limit exceeded")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Guard applies the quota and pacing before delegating to the provider. A nil
// quota means the credential is not subject to a daily limit.
type Guard struct {
	provider Generator
	quota    *QuotaState
	pacer    *Pacer
	logger   *slog.Logger
}

var _ Generator = (*Guard)(nil)

func NewGuard(provider Generator, quota *QuotaState, pacer *Pacer, logger *slog.Logger) *Guard {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Guard{
		provider: provider,
		quota:    quota,
		pacer:    pacer,
		logger:   logger,
	}
}

func (g *Guard) Generate(ctx context.Context, prompt string) (string, error) {
	if g.quota != nil {
		if err := g.quota.Acquire(); err != nil {
			aiRequests.WithLabelValues("quota_exceeded").Inc()
			g.logger.Error("Daily AI quota exceeded", "error", err)
			return "", err
		}
		day, used, limit := g.quota.Usage()
		quotaUsed.Set(float64(used))
		g.logger.Debug("AI quota usage", "day", day, "used", used, "limit", limit)
	}

	if err := g.pacer.Wait(ctx); err != nil {
		return "", err
	}

	text, err := g.provider.Generate(ctx, prompt)
	switch {
	case errors.Is(err, ErrProviderRateLimited):
		aiRequests.WithLabelValues("rate_limited").Inc()
		g.logger.Error("AI provider rate limit hit")
		return "", err
	case err != nil:
		aiRequests.WithLabelValues("error").Inc()
		return "", err
	}
	aiRequests.WithLabelValues("ok").Inc()
	return text, nil
}
