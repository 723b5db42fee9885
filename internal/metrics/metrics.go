// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts completed HTTP requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafepoint_http_requests_total",
		Help: "Completed HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency per route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cafepoint_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PointMutations counts ledger mutations by kind and result, replays
	// included ("replayed" result).
	PointMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafepoint_point_mutations_total",
		Help: "Point ledger mutation attempts.",
	}, []string{"kind", "result"})

	// OrdersCreated counts committed orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafepoint_orders_created_total",
		Help: "Successfully committed orders.",
	})
)
