package throttlego

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelPolicy   = "policy"
	metricsLabelDecision = "decision"
)

const (
	metricsValAllowed = "allowed"
	metricsValDenied  = "denied"
)

// MetricsCollector counts admission decisions made by the middleware and
// observes the wait times handed back to rejected clients.
type MetricsCollector struct {
	Decisions   *prometheus.CounterVec
	WaitSeconds *prometheus.HistogramVec
}

func NewMetricsCollector(namespace string) *MetricsCollector {
	return &MetricsCollector{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Number of admission decisions by policy and outcome.",
		}, []string{metricsLabelPolicy, metricsLabelDecision}),
		WaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_seconds",
			Help:      "Time until the next allowed request reported to rejected clients.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{metricsLabelPolicy}),
	}
}

// MustRegister registers the collectors in reg and panics on conflict.
func (mc *MetricsCollector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(mc.Decisions, mc.WaitSeconds)
}

func (mc *MetricsCollector) Unregister(reg prometheus.Registerer) {
	reg.Unregister(mc.Decisions)
	reg.Unregister(mc.WaitSeconds)
}

func (mc *MetricsCollector) observe(policy string, allowed bool, wait float64) {
	if mc == nil {
		return
	}
	if allowed {
		mc.Decisions.WithLabelValues(policy, metricsValAllowed).Inc()
		return
	}
	mc.Decisions.WithLabelValues(policy, metricsValDenied).Inc()
	mc.WaitSeconds.WithLabelValues(policy).Observe(wait)
}
