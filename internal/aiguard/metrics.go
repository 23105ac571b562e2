package aiguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapdocs_ai_requests_total",
			Help: "AI generation requests by outcome",
		},
		[]string{"outcome"},
	)

	quotaUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapdocs_ai_quota_used",
			Help: "AI requests counted against today's quota",
		},
	)
)
