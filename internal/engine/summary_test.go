package engine

import (
	"testing"

	"waterwatch/internal/domain"
)

func alertOf(param domain.Parameter, severity domain.Severity, text string) domain.Alert {
	return domain.Alert{Parameter: param, Severity: severity, Text: text}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	one := domain.AlertBatch{Alerts: []domain.Alert{alertOf(domain.ParamPH, domain.SeverityWarning, "a")}}
	if title, msg := Summarize(one); title != TitleWarning || msg != "a" {
		t.Fatalf("one alert = %q/%q", title, msg)
	}

	three := domain.AlertBatch{HasCritical: true, Alerts: []domain.Alert{
		alertOf(domain.ParamTemperature, domain.SeverityWarning, "a"),
		alertOf(domain.ParamPH, domain.SeverityCritical, "b"),
		alertOf(domain.ParamORP, domain.SeverityWarning, "c"),
	}}
	if title, msg := Summarize(three); title != TitleCritical || msg != "a, b, c" {
		t.Fatalf("three alerts = %q/%q", title, msg)
	}

	four := three
	four.Alerts = append(append([]domain.Alert(nil), three.Alerts...), alertOf(domain.ParamTDS, domain.SeverityWarning, "d"))
	if _, msg := Summarize(four); msg != "4 parameters out of range" {
		t.Fatalf("four alerts message = %q", msg)
	}
}

func TestMostSevereAndRelayMessage(t *testing.T) {
	t.Parallel()

	batch := domain.AlertBatch{HasCritical: true, Alerts: []domain.Alert{
		alertOf(domain.ParamTemperature, domain.SeverityWarning, "warm"),
		alertOf(domain.ParamTDS, domain.SeverityCritical, "salty"),
		alertOf(domain.ParamORP, domain.SeverityCritical, "orp"),
	}}
	alert, ok := MostSevere(batch)
	if !ok || alert.Parameter != domain.ParamTDS {
		t.Fatalf("most severe = %+v", alert)
	}
	title, message, _, ok := RelayMessage(batch)
	if !ok || title != "CRITICAL ALERT - Water quality" || message != "salty (+2 more alert(s))" {
		t.Fatalf("relay = %q/%q", title, message)
	}

	warnOnly := domain.AlertBatch{Alerts: []domain.Alert{alertOf(domain.ParamPH, domain.SeverityWarning, "ph")}}
	title, message, alert, _ = RelayMessage(warnOnly)
	if title != "Warning - Water quality" || message != "ph" || alert.Parameter != domain.ParamPH {
		t.Fatalf("warning relay = %q/%q/%+v", title, message, alert)
	}

	if _, _, _, ok := RelayMessage(domain.AlertBatch{}); ok {
		t.Fatalf("empty batch should not relay")
	}
}
