package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alert_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the alert pipeline.
type Metrics struct {
	// Feed fetch metrics.
	FetchResults  *prometheus.CounterVec   // labels: feed, kind={live,fallback,empty}
	FetchDuration *prometheus.HistogramVec // labels: feed

	// Normalization metrics.
	RecordsNormalized *prometheus.CounterVec // labels: feed
	NormalizeErrors   *prometheus.CounterVec // labels: feed

	// Dispatch metrics.
	NotificationsSent       *prometheus.CounterVec // labels: feed
	NotificationsSuppressed *prometheus.CounterVec // labels: feed, reason={seen,non_actionable,no_key}
	NotifyErrors            *prometheus.CounterVec // labels: feed
	PersistErrors           prometheus.Counter

	// Cycle metrics.
	CyclesRun        prometheus.Counter
	CyclesSkipped    prometheus.Counter
	CycleDuration    prometheus.Histogram
	SchedulerEnabled prometheus.Gauge

	// Record sink metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.FetchResults,
		m.FetchDuration,
		m.RecordsNormalized,
		m.NormalizeErrors,
		m.NotificationsSent,
		m.NotificationsSuppressed,
		m.NotifyErrors,
		m.PersistErrors,
		m.CyclesRun,
		m.CyclesSkipped,
		m.CycleDuration,
		m.SchedulerEnabled,
		m.RecordsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      help("Feed fetches by feed and payload origin."),
		}, []string{"feed", "kind"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("Duration of a feed fetch including fallback resolution."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		RecordsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      help("Alert records produced by normalization."),
		}, []string{"feed"}),
		NormalizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_errors_total",
			Help:      help("Payloads rejected as malformed during normalization."),
		}, []string{"feed"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      help("Notifications delivered to the sink."),
		}, []string{"feed"}),
		NotificationsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      help("Records not notified, by reason."),
		}, []string{"feed", "reason"}),
		NotifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      help("Notification sink failures."),
		}, []string{"feed"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      help("Failures writing seen-alert state."),
		}),
		CyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      help("Completed refresh cycles."),
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      help("Ticks and triggers dropped because a cycle was in flight."),
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      help("Duration of a complete fetch-normalize-dispatch cycle."),
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SchedulerEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_enabled",
			Help:      help("1 when periodic polling is enabled, 0 otherwise."),
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      help("Normalized records written to the record topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Failed record topic writes."),
		}),
	}
}
