package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
)

// FacadeMetrics exposes counters/histograms for calls through the data-access
// facade to the clinic API.
type FacadeMetrics struct {
	fetchTotal    *prometheus.CounterVec
	mutationTotal *prometheus.CounterVec
	callLatency   *prometheus.HistogramVec
}

func NewFacadeMetrics(reg prometheus.Registerer) *FacadeMetrics {
	m := &FacadeMetrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curasync",
			Subsystem: "facade",
			Name:      "fetch_total",
			Help:      "Total list fetches against the clinic API, degraded when an empty default was substituted",
		}, []string{"entity", "outcome"}),
		mutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curasync",
			Subsystem: "facade",
			Name:      "mutation_total",
			Help:      "Total create/update/delete/login calls against the clinic API",
		}, []string{"entity", "operation", "outcome"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "curasync",
			Subsystem: "facade",
			Name:      "call_latency_seconds",
			Help:      "Latency of clinic API calls made through the facade",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.fetchTotal, m.mutationTotal, m.callLatency)
	return m
}

func (m *FacadeMetrics) ObserveFetch(entity string, degraded bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if degraded {
		outcome = OutcomeDegraded
	}
	m.fetchTotal.WithLabelValues(entity, outcome).Inc()
	m.callLatency.WithLabelValues(entity, "list").Observe(seconds)
}

func (m *FacadeMetrics) ObserveMutation(entity, operation string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.mutationTotal.WithLabelValues(entity, operation, outcome).Inc()
	m.callLatency.WithLabelValues(entity, operation).Observe(seconds)
}

// DashboardMetrics counts user-facing dashboard actions.
type DashboardMetrics struct {
	actionsTotal *prometheus.CounterVec
}

func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	m := &DashboardMetrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curasync",
			Subsystem: "dashboard",
			Name:      "actions_total",
			Help:      "Dashboard actions (load, book, cancel) by outcome",
		}, []string{"action", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.actionsTotal)
	return m
}

func (m *DashboardMetrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}
