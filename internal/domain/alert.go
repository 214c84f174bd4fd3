package domain

import "time"

const (
	criticalMarker = "⚠️"
	warningMarker  = "⚡"
)

// Finding is one parameter's classification inside an evaluation.
// Params: parameter key, input measurement, verdict, and progress position.
// Returns: per-parameter result used by status rendering.
type Finding struct {
	Parameter Parameter `json:"parameter"`
	Value     Value     `json:"value"`
	Severity  Severity  `json:"severity"`
	Position  float64   `json:"position"`
}

// Alert is one out-of-range finding.
// Params: parameter key, Warning/Critical severity, message text, and measured value.
// Returns: ephemeral alert recomputed on each reading.
type Alert struct {
	Parameter Parameter `json:"parameter"`
	Severity  Severity  `json:"severity"`
	Text      string    `json:"text"`
	Value     float64   `json:"value"`
}

// Display renders alert text with a severity marker for presentation only.
// Params: none.
// Returns: marker-prefixed text.
func (a Alert) Display() string {
	if a.Severity == SeverityCritical {
		return criticalMarker + " " + a.Text
	}
	return warningMarker + " " + a.Text
}

// AlertBatch is the ordered alert set for one reading.
// Params: alerts in parameter order, critical flag, aggregate severity, and all findings.
// Returns: evaluation output that replaces the previous batch entirely.
type AlertBatch struct {
	Alerts      []Alert   `json:"alerts"`
	HasCritical bool      `json:"has_critical"`
	Severity    Severity  `json:"severity"`
	Findings    []Finding `json:"findings"`
}

// Empty reports whether the batch has no alerts.
func (b AlertBatch) Empty() bool {
	return len(b.Alerts) == 0
}

// Notification is one outbound local notification request.
// Params: fixed notification id, title/body text, criticality, and content fingerprint.
// Returns: payload for notification transports.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Critical    bool      `json:"critical"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Repeat      bool      `json:"repeat,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RelayEntry is one cross-device alert record on the shared relay channel.
// Params: entry id, origin instance, notification text, most severe alert metadata, and creation time.
// Returns: opaque record rebroadcast by other dashboard instances.
type RelayEntry struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin,omitempty"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Parameter Parameter `json:"parameter"`
	Value     float64   `json:"value"`
	ValueText string    `json:"value_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns entry age relative to now.
func (e RelayEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// NotificationRecord is the durable part of notification state.
// Params: last dispatched fingerprint and dispatch time.
// Returns: value persisted across restarts.
type NotificationRecord struct {
	Fingerprint string    `json:"fingerprint"`
	LastSentAt  time.Time `json:"last_sent_at"`
}
