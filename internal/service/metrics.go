package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redirect attempts partitioned by outcome
	redirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Redirect attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Number selections partitioned by balancer branch
	balancerSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balancer_selections_total",
			Help: "Number selections by balancer strategy",
		},
		[]string{"strategy"},
	)

	// Non-fatal failures absorbed during redirects
	redirectWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_warnings_total",
			Help: "Non-fatal failures absorbed while serving redirects",
		},
		[]string{"kind", "op"},
	)

	// Time spent inside HandleRedirect
	redirectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redirect_duration_seconds",
			Help:    "Time to resolve a redirect target",
			Buckets: prometheus.DefBuckets,
		},
	)
)
