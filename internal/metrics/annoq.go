package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search, streaming and gene lookup Prometheus metrics.
var (
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "annoq",
			Name:      "backend_request_duration_seconds",
			Help:      "Search engine request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "annoq",
			Name:      "backend_errors_total",
			Help:      "Total search engine errors",
		},
		[]string{"op"},
	)

	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "annoq",
			Name:      "snapshots_total",
			Help:      "Snapshot lifecycle events",
		},
		[]string{"event"}, // "opened" / "released" / "release_failed"
	)

	StreamedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "annoq",
			Name:      "streamed_records_total",
			Help:      "Total records yielded by streaming exports",
		},
	)

	GeneLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "annoq",
			Name:      "gene_lookups_total",
			Help:      "Gene position lookups by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: "found" / "not_found" / "unavailable"
	)

	GeneLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "annoq",
			Name:      "gene_lookup_duration_seconds",
			Help:      "Gene position lookup duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"},
	)

	GeneCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "annoq",
			Name:      "gene_cache_total",
			Help:      "Gene position cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var annoqMetricsRegistered bool

// RegisterMetrics registers the HTTP, search, stream and gene lookup metrics. Repeated calls are no-ops.
func RegisterMetrics() {
	if annoqMetricsRegistered {
		return
	}
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpResponseBytes)
	prometheus.MustRegister(httpInFlight)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(StreamedRecordsTotal)
	prometheus.MustRegister(GeneLookupsTotal)
	prometheus.MustRegister(GeneLookupDuration)
	prometheus.MustRegister(GeneCacheTotal)
	annoqMetricsRegistered = true
}

// ObserveBackend records one search engine call.
func ObserveBackend(op string, seconds float64, err error) {
	BackendRequestDuration.WithLabelValues(op).Observe(seconds)
	if err != nil {
		BackendErrorsTotal.WithLabelValues(op).Inc()
	}
}
