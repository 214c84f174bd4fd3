package e2e

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"waterwatch/internal/domain"
)

func TestServiceSingleModeAlertLifecycle(t *testing.T) {
	port, err := freePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	collector := &webhookCollector{}
	webhook := httptest.NewServer(http.HandlerFunc(collector.Handle))
	defer webhook.Close()

	service := newServiceFromConfig(t, e2eConfig(e2eServiceOptions{
		Port:       port,
		WebhookURL: webhook.URL,
		Relay:      true,
	}))
	cancel, done := runService(t, service)
	defer cancel()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitReady(t, port)

	postReading(t, baseURL, readingJSON(40.0))
	waitFor(t, 5*time.Second, func() bool {
		return collector.Count("display", "water-quality-alert") == 1
	})
	calls := collector.Snapshot()
	if calls[0].Notification == nil || !calls[0].Notification.Critical || calls[0].Notification.Title != "CRITICAL ALERT" {
		t.Fatalf("unexpected display call: %+v", calls[0])
	}

	// same condition while the repeat timer is armed is not re-sent
	postReading(t, baseURL, readingJSON(40.0))
	status := getStatus(t, baseURL)
	if !status.Online || !status.HasCritical || status.Severity != domain.SeverityCritical || len(status.Alerts) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !status.Notification.Active || status.Notification.NextRepeatAt == nil {
		t.Fatalf("expected active notification in status: %+v", status.Notification)
	}
	if !strings.HasPrefix(status.Alerts[0].Display, "⚠️ ") {
		t.Fatalf("unexpected display text %q", status.Alerts[0].Display)
	}

	postReading(t, baseURL, readingJSON(24.0))
	waitFor(t, 5*time.Second, func() bool {
		return collector.Count("cancel", "water-quality-alert") == 1
	})
	if collector.Count("display", "water-quality-alert") != 1 {
		t.Fatalf("duplicate display calls: %+v", collector.Snapshot())
	}
	if getStatus(t, baseURL).Notification.Active {
		t.Fatalf("expected idle scheduler after normal reading")
	}

	response, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	_ = response.Body.Close()
	if !strings.Contains(string(body), `waterwatch_readings_total{result="ok"} 3`) {
		t.Fatalf("metrics missing readings counter:\n%s", body)
	}

	cancel()
	waitServiceStop(t, done)
}

func TestServiceSingleModeNoDataMarksOffline(t *testing.T) {
	port, err := freePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	service := newServiceFromConfig(t, e2eConfig(e2eServiceOptions{Port: port}))
	cancel, done := runService(t, service)
	defer cancel()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitReady(t, port)

	postReading(t, baseURL, readingJSON(24.0))
	waitFor(t, 5*time.Second, func() bool { return getStatus(t, baseURL).Online })
	postReading(t, baseURL, "null")
	waitFor(t, 5*time.Second, func() bool {
		status := getStatus(t, baseURL)
		return !status.Online && !status.HasData && status.Severity == domain.SeverityNoData
	})

	cancel()
	waitServiceStop(t, done)
}
