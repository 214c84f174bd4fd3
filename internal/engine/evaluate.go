package engine

import (
	"waterwatch/internal/domain"
	"waterwatch/internal/threshold"
)

// Evaluator runs the classifier across all parameters of a reading.
// Params: injected threshold table and classifier.
// Returns: stateless evaluator producing one alert batch per reading.
type Evaluator struct {
	table      threshold.Table
	classifier Classifier
}

// NewEvaluator builds evaluator over injected bands.
// Params: threshold table and classifier margins.
// Returns: evaluator instance.
func NewEvaluator(table threshold.Table, classifier Classifier) *Evaluator {
	return &Evaluator{table: table, classifier: classifier}
}

// Evaluate classifies every parameter in fixed order.
// Params: one sensor reading.
// Returns: alert batch with Warning/Critical alerts, critical flag, and per-parameter findings.
func (e *Evaluator) Evaluate(reading domain.Reading) domain.AlertBatch {
	batch := domain.AlertBatch{
		Severity: domain.SeverityNoData,
		Findings: make([]domain.Finding, 0, len(domain.ParameterOrder)),
	}
	for _, param := range domain.ParameterOrder {
		band, ok := e.table.Band(param)
		if !ok {
			continue
		}
		value := reading.Value(param)
		severity, position := e.classifier.Classify(value, band)
		batch.Findings = append(batch.Findings, domain.Finding{
			Parameter: param,
			Value:     value,
			Severity:  severity,
			Position:  position,
		})
		batch.Severity = domain.MaxSeverity(batch.Severity, severity)
		if !severity.IsAlert() {
			continue
		}
		measured := value.Or(0)
		batch.Alerts = append(batch.Alerts, domain.Alert{
			Parameter: param,
			Severity:  severity,
			Text:      alertText(param, severity, measured, band),
			Value:     measured,
		})
		if severity == domain.SeverityCritical {
			batch.HasCritical = true
		}
	}
	return batch
}

// alertText renders "<label> <verdict>: <value> (expected <range>)".
func alertText(param domain.Parameter, severity domain.Severity, value float64, band threshold.Band) string {
	verdict := "out of range"
	switch {
	case severity == domain.SeverityCritical:
		verdict = "critical"
	case band.Kind() == threshold.KindMaxOnly:
		verdict = "elevated"
	}
	return param.Label() + " " + verdict + ": " + param.FormatValue(value) + " (expected " + band.RangeText(param) + ")"
}
