// Package metrics holds the portal's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finportal"

var (
	// CacheRequests counts cache lookups by cache name and result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Result cache lookups.",
	}, []string{"cache", "result"})

	WarehouseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "query_duration_seconds",
		Help:      "Warehouse query latency.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"driver", "status"})

	WarehouseRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "rows_total",
		Help:      "Fact rows read from the warehouse.",
	}, []string{"driver"})

	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "transform_duration_seconds",
		Help:      "Pivot transform latency per report.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"report"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
