package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersAndGauge(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.ObserveReading(ResultOK)
	m.ObserveReading(ResultOK)
	m.ObserveAlert("temperature", "critical")
	m.ObserveNotification("display", ResultDenied)
	m.ObserveRelayEntries(ResultSwept, 3)
	m.ObserveRelayEntries(ResultSwept, 0)
	m.SetSchedulerActive(true)

	if got := testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(ResultOK)); got != 2 {
		t.Fatalf("readings ok = %v", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("temperature", "critical")); got != 1 {
		t.Fatalf("alerts = %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("display", ResultDenied)); got != 1 {
		t.Fatalf("notifications = %v", got)
	}
	if got := testutil.ToFloat64(m.RelayEntriesTotal.WithLabelValues(ResultSwept)); got != 3 {
		t.Fatalf("relay swept = %v", got)
	}
	if got := testutil.ToFloat64(m.SchedulerActive); got != 1 {
		t.Fatalf("scheduler active = %v", got)
	}
	m.SetSchedulerActive(false)
	if got := testutil.ToFloat64(m.SchedulerActive); got != 0 {
		t.Fatalf("scheduler active after reset = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveReading(ResultOK)
	m.ObserveAlert("ph", "warning")
	m.ObserveNotification("cancel", ResultOK)
	m.ObserveRelayEntries(ResultStale, 1)
	m.SetSchedulerActive(true)
	m.ObserveEvaluation(0.1)
}
