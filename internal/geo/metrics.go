package geo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Geolocation jobs partitioned by outcome
	geoJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_jobs_total",
			Help: "Geolocation jobs by result",
		},
		[]string{"result"},
	)

	// Cache lookups in front of the providers
	geoCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_cache_lookups_total",
			Help: "Geolocation cache lookups by result",
		},
		[]string{"result"},
	)
)
