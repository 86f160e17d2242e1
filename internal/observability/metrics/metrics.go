package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics exposes counters/histograms for webhook intake and the
// retry loops.
type ReconcileMetrics struct {
	webhookTotal      *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	wakeTotal         *prometheus.CounterVec
	permanentFailures *prometheus.CounterVec
	outcomesTotal     *prometheus.CounterVec
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "reconcile",
			Name:      "webhook_total",
			Help:      "Vendor call webhooks by intake outcome",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "reconcile",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of vendor webhook handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		wakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "reconcile",
			Name:      "wake_total",
			Help:      "Retry wakes by track and result",
		}, []string{"track", "result"}),
		permanentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "reconcile",
			Name:      "permanent_failures_total",
			Help:      "Calls given up on after exhausting retries",
		}, []string{"track"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Finalized call outcomes",
		}, []string{"successful"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.webhookLatency, m.wakeTotal, m.permanentFailures, m.outcomesTotal)
	return m
}

func (m *ReconcileMetrics) ObserveWebhook(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
	m.webhookLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ReconcileMetrics) ObserveWake(track, result string) {
	if m == nil {
		return
	}
	m.wakeTotal.WithLabelValues(track, result).Inc()
}

func (m *ReconcileMetrics) ObservePermanentFailure(track string) {
	if m == nil {
		return
	}
	m.permanentFailures.WithLabelValues(track).Inc()
}

func (m *ReconcileMetrics) ObserveOutcome(successful bool) {
	if m == nil {
		return
	}
	label := "false"
	if successful {
		label = "true"
	}
	m.outcomesTotal.WithLabelValues(label).Inc()
}
