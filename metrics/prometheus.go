package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Total number of sync runs by type, channel and final status.",
		},
		[]string{"sync_type", "channel", "status"},
	)
	syncRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_run_duration_seconds",
			Help:    "Histogram of sync run durations.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"sync_type", "channel"},
	)
	syncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_items_total",
			Help: "Total records touched by sync runs, by outcome.",
		},
		[]string{"sync_type", "outcome"},
	)
	rateLimitedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supplier_api_rate_limited",
			Help: "1 while the supplier API endpoint is in a rate-limit cooldown.",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncRunDuration)
	prometheus.MustRegister(syncItemsTotal)
	prometheus.MustRegister(rateLimitedGauge)
}

// RecordSyncRun записывает метрики завершённого запуска синхронизации.
func RecordSyncRun(syncType, channel, status string, duration time.Duration) {
	syncRunsTotal.WithLabelValues(syncType, channel, status).Inc()
	syncRunDuration.WithLabelValues(syncType, channel).Observe(duration.Seconds())
}

// RecordSyncItems записывает счётчики записей по результатам запуска.
func RecordSyncItems(syncType string, processed, updated, added, failed int) {
	syncItemsTotal.WithLabelValues(syncType, "processed").Add(float64(processed))
	syncItemsTotal.WithLabelValues(syncType, "updated").Add(float64(updated))
	syncItemsTotal.WithLabelValues(syncType, "added").Add(float64(added))
	syncItemsTotal.WithLabelValues(syncType, "failed").Add(float64(failed))
}

// SetRateLimited выставляет gauge лимита для endpoint'а.
func SetRateLimited(endpoint string, limited bool) {
	v := 0.0
	if limited {
		v = 1.0
	}
	rateLimitedGauge.WithLabelValues(endpoint).Set(v)
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
