// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darb",
		Subsystem: "persistence",
		Name:      "remote_failures_total",
		Help:      "Remote document store calls that failed, by operation and error kind.",
	}, []string{"op", "kind"})

	FallbackWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darb",
		Subsystem: "persistence",
		Name:      "fallback_operations_total",
		Help:      "Operations re-executed against the local fallback store.",
	}, []string{"op", "collection"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darb",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Read cache lookups by result (hit, miss).",
	}, []string{"result"})

	Evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darb",
		Subsystem: "quota",
		Name:      "evicted_records_total",
		Help:      "Records removed or trimmed by the eviction policy.",
	}, []string{"collection"})

	LocalStoreBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darb",
		Subsystem: "quota",
		Name:      "local_store_bytes",
		Help:      "Bytes used by the local fallback store at the last check.",
	})

	PressureLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darb",
		Subsystem: "quota",
		Name:      "pressure_level",
		Help:      "0 = normal, 1 = near-limit, 2 = critical.",
	})

	AssetsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darb",
		Subsystem: "media",
		Name:      "assets_processed_total",
		Help:      "Optimized assets by role and storage strategy.",
	}, []string{"role", "kind"})
)
