package engine

import (
	"strconv"
	"strings"

	"waterwatch/internal/domain"
)

const (
	// TitleCritical labels notifications for batches with a critical alert.
	TitleCritical = "CRITICAL ALERT"
	// TitleWarning labels notifications for warning-only batches.
	TitleWarning = "Warning"
	// RelayTitleSuffix is appended to relay titles.
	RelayTitleSuffix = " - Water quality"
)

// Summarize condenses a non-empty batch into notification title and message.
// Params: alert batch.
// Returns: title by criticality and message (1 alert: text, 2-3: comma-joined, more: count).
func Summarize(batch domain.AlertBatch) (string, string) {
	title := TitleWarning
	if batch.HasCritical {
		title = TitleCritical
	}
	switch n := len(batch.Alerts); {
	case n == 0:
		return title, ""
	case n == 1:
		return title, batch.Alerts[0].Text
	case n <= 3:
		texts := make([]string, 0, n)
		for _, alert := range batch.Alerts {
			texts = append(texts, alert.Text)
		}
		return title, strings.Join(texts, ", ")
	default:
		return title, strconv.Itoa(n) + " parameters out of range"
	}
}

// MostSevere picks the first Critical alert, else the first alert.
// Params: alert batch in parameter order.
// Returns: selected alert and false for empty batch.
func MostSevere(batch domain.AlertBatch) (domain.Alert, bool) {
	for _, alert := range batch.Alerts {
		if alert.Severity == domain.SeverityCritical {
			return alert, true
		}
	}
	if len(batch.Alerts) == 0 {
		return domain.Alert{}, false
	}
	return batch.Alerts[0], true
}

// RelayMessage builds cross-device title and message for a batch.
// Params: non-empty alert batch.
// Returns: relay title, message with "(+N more alert(s))" suffix, and selected alert.
func RelayMessage(batch domain.AlertBatch) (string, string, domain.Alert, bool) {
	alert, ok := MostSevere(batch)
	if !ok {
		return "", "", domain.Alert{}, false
	}
	title := TitleWarning + RelayTitleSuffix
	if batch.HasCritical {
		title = TitleCritical + RelayTitleSuffix
	}
	message := alert.Text
	if extra := len(batch.Alerts) - 1; extra > 0 {
		message += " (+" + strconv.Itoa(extra) + " more alert(s))"
	}
	return title, message, alert, true
}
