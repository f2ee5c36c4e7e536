// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seriate/recurrence"
	"seriate/storage"
)

var (
	registerOnce   sync.Once
	cacheGaugeOnce sync.Once

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seriate",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation passes by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seriate",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconciliation pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	instanceWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seriate",
			Subsystem: "reconcile",
			Name:      "instance_writes_total",
			Help:      "Instances created, skipped and deleted by apply passes.",
		},
		[]string{"operation", "action"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seriate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(reconcileRuns, reconcileDuration, instanceWrites, httpRequests)
	})
}

// RegisterCacheGauge publishes the generator's cache occupancy.
func RegisterCacheGauge(gen *recurrence.Generator) {
	cacheGaugeOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "seriate",
				Subsystem: "recurrence",
				Name:      "cache_entries",
				Help:      "Live entries in the occurrence cache.",
			},
			func() float64 { return float64(gen.CacheStats().ActiveEntries) },
		))
	})
}

// RecordReconcile counts one reconciliation pass and its instance writes.
func RecordReconcile(operation string, stats storage.ApplyStats, duration time.Duration, err error) {
	Register()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	reconcileRuns.WithLabelValues(operation, outcome).Inc()
	reconcileDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if stats.Created > 0 {
		instanceWrites.WithLabelValues(operation, "created").Add(float64(stats.Created))
	}
	if stats.Skipped > 0 {
		instanceWrites.WithLabelValues(operation, "skipped").Add(float64(stats.Skipped))
	}
	if stats.Deleted > 0 {
		instanceWrites.WithLabelValues(operation, "deleted").Add(float64(stats.Deleted))
	}
}

// RecordHTTPRequest counts one served API request.
func RecordHTTPRequest(method, route string, status int) {
	Register()
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
