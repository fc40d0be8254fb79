package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nearlyhq/nearly-go/internal/ops"
)

var (
	SyncCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nearly_sync_cycles_total",
		Help: "Total conversation sync cycles run",
	})
	SyncFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nearly_sync_failures_total",
		Help: "Total sync cycles whose fetch failed",
	})
	StaleDiscards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nearly_sync_stale_discards_total",
		Help: "Total fetched snapshots discarded as stale",
	})
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearly_sync_duration_seconds",
		Help:    "Sync cycle duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	OptimisticApplies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearly_optimistic_applies_total",
		Help: "Total optimistic toggle mutations applied",
	}, []string{"kind"})
	OptimisticReverts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearly_optimistic_reverts_total",
		Help: "Total optimistic toggle mutations reverted after remote failure",
	}, []string{"kind"})
	PlaceholdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nearly_placeholders_failed_total",
		Help: "Total sending placeholders marked failed after exhausting cycles",
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearly_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(
		SyncCycles, SyncFailures, StaleDiscards, SyncDuration,
		OptimisticApplies, OptimisticReverts, PlaceholdersFailed, APIRetries,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			ops.Default().Error("metrics server stopped", "error", err)
		}
	}()
}

// ObserveSyncDuration records one cycle duration.
func ObserveSyncDuration(start time.Time) {
	SyncDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }
