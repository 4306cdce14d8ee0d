// Package metrics defines the Prometheus collectors of hivewatch.
//
// Every recording method is safe on a nil *Metrics, so components built
// without metrics need no guards.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hivewatch"

// Evaluation outcome labels.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Metrics holds all collectors.
type Metrics struct {
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	sweepDuration      prometheus.Histogram
	alertsCreated      *prometheus.CounterVec
	alertsSuppressed   *prometheus.CounterVec
	persistFailures    prometheus.Counter
	recomputes         *prometheus.CounterVec
	drift              prometheus.Counter
	alertsPurged       prometheus.Counter
	panics             *prometheus.CounterVec
	feedFailures       *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Hive evaluations by outcome.",
		}, []string{"status"}),
		evaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a single hive.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent evaluating all monitored hives.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		alertsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts persisted by type and severity.",
		}, []string{"alert_type", "severity"}),
		alertsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Alerts dropped by the duplicate window.",
		}, []string{"alert_type"}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_persist_failures_total",
			Help:      "Alert inserts that failed.",
		}),
		recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_recomputes_total",
			Help:      "Monitoring flag recomputations, by whether the flag changed.",
		}, []string{"changed"}),
		drift: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_drift_total",
			Help:      "Hives whose stored monitoring flag disagreed with their devices during a resync.",
		}),
		alertsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_purged_total",
			Help:      "Resolved alerts removed by retention.",
		}),
		panics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_recovered_total",
			Help:      "Recovered panics by component.",
		}, []string{"component"}),
		feedFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_publish_failures_total",
			Help:      "Alert feed publish failures by backend.",
		}, []string{"backend"}),
	}
}

func (m *Metrics) Evaluation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(status).Inc()
	m.evaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) Sweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func (m *Metrics) AlertCreated(alertType, severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) AlertSuppressed(alertType string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(alertType).Inc()
}

func (m *Metrics) PersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) Recompute(changed bool) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

func (m *Metrics) Drift(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.drift.Add(float64(n))
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.alertsPurged.Add(float64(n))
}

func (m *Metrics) PanicRecovered(component string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(component).Inc()
}

func (m *Metrics) FeedFailure(backend string) {
	if m == nil {
		return
	}
	m.feedFailures.WithLabelValues(backend).Inc()
}
