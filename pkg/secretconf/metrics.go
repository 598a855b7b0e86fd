package secretconf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reloadTotal          *prometheus.CounterVec
	reloadDuration       *prometheus.HistogramVec
	snapshotSecrets      *prometheus.GaugeVec
	consecutiveFailures  *prometheus.GaugeVec
	mappingCollisions    *prometheus.CounterVec
	changeNotifications  *prometheus.CounterVec

	metricsOnce sync.Once
)

// registerMetrics initializes all Prometheus collectors. Called lazily
// the first time a provider is built with WithMetrics.
func registerMetrics() {
	metricsOnce.Do(func() {
		reloadTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretconf_reload_total",
				Help: "Total reload attempts by outcome (success, unchanged, failure)",
			},
			[]string{"store", "outcome"},
		)

		reloadDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretconf_reload_duration_seconds",
				Help:    "Duration of reload attempts in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"store"},
		)

		snapshotSecrets = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secretconf_snapshot_entries",
				Help: "Number of configuration entries in the active snapshot",
			},
			[]string{"store"},
		)

		consecutiveFailures = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secretconf_consecutive_failures",
				Help: "Failed reload attempts since the last success",
			},
			[]string{"store"},
		)

		mappingCollisions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretconf_mapping_collisions_total",
				Help: "Secrets that mapped onto an already-occupied configuration key",
			},
			[]string{"store"},
		)

		changeNotifications = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretconf_change_notifications_total",
				Help: "Snapshot replacements that fired change notifications",
			},
			[]string{"store"},
		)
	})
}

// metricsRecorder records engine metrics for one provider. A nil
// recorder is valid and records nothing, so call sites stay unguarded.
type metricsRecorder struct{}

func newMetricsRecorder() *metricsRecorder {
	registerMetrics()
	return &metricsRecorder{}
}

func (m *metricsRecorder) observeReload(store, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	reloadTotal.WithLabelValues(store, outcome).Inc()
	reloadDuration.WithLabelValues(store).Observe(elapsed.Seconds())
}

func (m *metricsRecorder) setSnapshotSize(store string, n int) {
	if m == nil {
		return
	}
	snapshotSecrets.WithLabelValues(store).Set(float64(n))
}

func (m *metricsRecorder) setConsecutiveFailures(store string, n int) {
	if m == nil {
		return
	}
	consecutiveFailures.WithLabelValues(store).Set(float64(n))
}

func (m *metricsRecorder) addCollisions(store string, n int) {
	if m == nil || n == 0 {
		return
	}
	mappingCollisions.WithLabelValues(store).Add(float64(n))
}

func (m *metricsRecorder) notified(store string) {
	if m == nil {
		return
	}
	changeNotifications.WithLabelValues(store).Inc()
}
