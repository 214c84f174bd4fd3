package engine

import (
	"strings"
	"testing"

	"waterwatch/internal/domain"
	"waterwatch/internal/threshold"
)

func normalReading() domain.Reading {
	return domain.Reading{
		Temperature:  domain.Present(24.0),
		PH:           domain.Present(7.0),
		Conductivity: domain.Present(1000),
		TDS:          domain.Present(300),
		Turbidity:    domain.Present(0.5),
		ORP:          domain.Present(700),
	}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(threshold.Default(), DefaultClassifier())
}

func TestEvaluateAllNormalIsEmpty(t *testing.T) {
	t.Parallel()

	batch := newTestEvaluator().Evaluate(normalReading())
	if !batch.Empty() || batch.HasCritical {
		t.Fatalf("expected empty batch, got %+v", batch)
	}
	if len(batch.Findings) != len(domain.ParameterOrder) {
		t.Fatalf("expected %d findings, got %d", len(domain.ParameterOrder), len(batch.Findings))
	}
	if batch.Severity.Rank() != 1 {
		t.Fatalf("aggregate severity = %s", batch.Severity)
	}
}

func TestEvaluateTemperatureWarningScenario(t *testing.T) {
	t.Parallel()

	reading := normalReading()
	reading.Temperature = domain.Present(30.0)
	batch := newTestEvaluator().Evaluate(reading)
	if len(batch.Alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", batch.Alerts)
	}
	alert := batch.Alerts[0]
	if alert.Parameter != domain.ParamTemperature || alert.Severity != domain.SeverityWarning {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if batch.HasCritical {
		t.Fatalf("expected hasCritical=false")
	}
	if alert.Text != "Temperature out of range: 30.0°C (expected 22.0-26.5)" {
		t.Fatalf("unexpected text %q", alert.Text)
	}
	if batch.Severity != domain.SeverityWarning {
		t.Fatalf("aggregate severity = %s", batch.Severity)
	}
}

func TestEvaluateTemperatureCriticalScenario(t *testing.T) {
	t.Parallel()

	reading := normalReading()
	reading.Temperature = domain.Present(40.0)
	batch := newTestEvaluator().Evaluate(reading)
	if len(batch.Alerts) != 1 || batch.Alerts[0].Severity != domain.SeverityCritical {
		t.Fatalf("expected one critical alert, got %+v", batch.Alerts)
	}
	if !batch.HasCritical {
		t.Fatalf("expected hasCritical=true")
	}
	if !strings.HasPrefix(batch.Alerts[0].Display(), "⚠️ ") {
		t.Fatalf("display = %q", batch.Alerts[0].Display())
	}
}

func TestEvaluateOrderAndMissingData(t *testing.T) {
	t.Parallel()

	reading := domain.Reading{
		Temperature: domain.Present(10),
		TDS:         domain.Present(650),
		Turbidity:   domain.Present(9),
		ORP:         domain.Present(600),
	}
	batch := newTestEvaluator().Evaluate(reading)
	want := []domain.Parameter{domain.ParamTemperature, domain.ParamTDS, domain.ParamTurbidity, domain.ParamORP}
	if len(batch.Alerts) != len(want) {
		t.Fatalf("expected %d alerts, got %+v", len(want), batch.Alerts)
	}
	for i, param := range want {
		if batch.Alerts[i].Parameter != param {
			t.Fatalf("alert %d parameter = %s, want %s", i, batch.Alerts[i].Parameter, param)
		}
	}
	if batch.Alerts[1].Text != "TDS elevated: 650 ppm (expected ≤600)" {
		t.Fatalf("tds text = %q", batch.Alerts[1].Text)
	}
	for _, finding := range batch.Findings {
		if finding.Parameter == domain.ParamPH && finding.Severity != domain.SeverityNoData {
			t.Fatalf("missing pH should be no_data, got %s", finding.Severity)
		}
	}
}

func TestEvaluateTurbidityAcceptableProducesNoAlert(t *testing.T) {
	t.Parallel()

	reading := normalReading()
	reading.Turbidity = domain.Present(3.0)
	batch := newTestEvaluator().Evaluate(reading)
	if !batch.Empty() {
		t.Fatalf("acceptable turbidity raised alerts: %+v", batch.Alerts)
	}
}

func TestEvaluateEmptyReading(t *testing.T) {
	t.Parallel()

	batch := newTestEvaluator().Evaluate(domain.Reading{})
	if !batch.Empty() || batch.Severity != domain.SeverityNoData {
		t.Fatalf("expected no-data batch, got %+v", batch)
	}
}
