package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados registrados en crud_resolver_requests_total.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeUnavailable = "unavailable"
	outcomeCacheHit    = "cache_hit"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crud_resolver_requests_total",
		Help: "Consultas a servicios hermanos por recurso, operación y resultado.",
	}, []string{"service", "resource", "op", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crud_resolver_request_duration_seconds",
		Help:    "Duración de las consultas a servicios hermanos.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "resource", "op"})
)
