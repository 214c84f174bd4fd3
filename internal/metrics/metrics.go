package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "waterwatch_"

const (
	// ResultOK marks a successful operation.
	ResultOK = "ok"
	// ResultError marks a failed operation.
	ResultError = "error"
	// ResultDenied marks a transport permission failure.
	ResultDenied = "denied"
	// ResultNoData marks a feed update without a reading.
	ResultNoData = "no_data"
	// ResultInvalid marks an undecodable reading payload.
	ResultInvalid = "invalid"
	// ResultDisplayed marks a relay entry rebroadcast locally.
	ResultDisplayed = "displayed"
	// ResultStale marks a relay entry dropped by the staleness window.
	ResultStale = "stale"
	// ResultOwn marks a relay entry published by this instance.
	ResultOwn = "own"
	// ResultSwept marks a relay entry deleted by retention sweep.
	ResultSwept = "swept"
	// ResultPublished marks a relay entry published by this instance.
	ResultPublished = "published"
)

// Metrics bundles waterwatch metrics. A nil *Metrics is a valid no-op sink.
type Metrics struct {
	ReadingsTotal      *prometheus.CounterVec
	AlertsTotal        *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	RelayEntriesTotal  *prometheus.CounterVec
	SchedulerActive    prometheus.Gauge
	EvaluationDuration prometheus.Histogram
}

// New constructs and registers metrics.
// Params: registerer (prometheus.DefaultRegisterer when nil).
// Returns: registered metric bundle.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Total feed updates by result",
			},
			[]string{"result"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alerts raised by parameter and severity",
			},
			[]string{"parameter", "severity"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification transport calls by kind and result",
			},
			[]string{"kind", "result"},
		),
		RelayEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "relay_entries_total",
				Help: "Total relay entries by result",
			},
			[]string{"result"},
		),
		SchedulerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "scheduler_active",
			Help: "1 while a repeating notification timer is armed",
		}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "evaluation_duration_seconds",
			Help:    "Reading evaluation and scheduling duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.ReadingsTotal,
		m.AlertsTotal,
		m.NotificationsTotal,
		m.RelayEntriesTotal,
		m.SchedulerActive,
		m.EvaluationDuration,
	)
	return m
}

// ObserveReading counts one feed update.
func (m *Metrics) ObserveReading(result string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(result).Inc()
}

// ObserveAlert counts one raised alert.
func (m *Metrics) ObserveAlert(parameter, severity string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(parameter, severity).Inc()
}

// ObserveNotification counts one transport call.
func (m *Metrics) ObserveNotification(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRelayEntries adds n relay entries with result.
func (m *Metrics) ObserveRelayEntries(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RelayEntriesTotal.WithLabelValues(result).Add(float64(n))
}

// SetSchedulerActive mirrors scheduler timer state.
func (m *Metrics) SetSchedulerActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SchedulerActive.Set(1)
		return
	}
	m.SchedulerActive.Set(0)
}

// ObserveEvaluation records evaluation latency in seconds.
func (m *Metrics) ObserveEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(seconds)
}
