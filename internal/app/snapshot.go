package app

import (
	"time"

	"waterwatch/internal/domain"
)

// AlertView is one alert with its presentation string.
type AlertView struct {
	domain.Alert
	Display string `json:"display"`
}

// NotificationView is the scheduler part of a status snapshot.
type NotificationView struct {
	Active       bool       `json:"active"`
	Title        string     `json:"title,omitempty"`
	Body         string     `json:"body,omitempty"`
	Critical     bool       `json:"critical"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	LastSentAt   *time.Time `json:"last_sent_at,omitempty"`
	NextRepeatAt *time.Time `json:"next_repeat_at,omitempty"`
}

// Snapshot is the device status served by the status endpoint.
// Params: latest reading, per-parameter findings, alerts and scheduler state.
// Returns: read-only copy safe to serialize.
type Snapshot struct {
	DeviceID      string           `json:"device_id"`
	Online        bool             `json:"online"`
	HasData       bool             `json:"has_data"`
	LastUpdateAt  *time.Time       `json:"last_update_at,omitempty"`
	LastReadingAt *time.Time       `json:"last_reading_at,omitempty"`
	Reading       *domain.Reading  `json:"reading,omitempty"`
	Severity      domain.Severity  `json:"severity"`
	HasCritical   bool             `json:"has_critical"`
	Findings      []domain.Finding `json:"findings"`
	Alerts        []AlertView      `json:"alerts"`
	Notification  NotificationView `json:"notification"`
}

// Snapshot returns current device status.
// Params: none.
// Returns: copy of latest evaluation and scheduler state; Online is false once
// no reading arrived within the staleness window or the feed reports no data.
func (s *Session) Snapshot() Snapshot {
	now := s.deps.Clock.Now()
	s.mu.RLock()
	view := s.view
	s.mu.RUnlock()

	out := Snapshot{
		DeviceID: s.deps.DeviceID,
		HasData:  view.hasData,
		Severity: domain.SeverityNoData,
		Findings: []domain.Finding{},
		Alerts:   []AlertView{},
	}
	if !view.lastUpdateAt.IsZero() {
		out.LastUpdateAt = timePtr(view.lastUpdateAt)
	}
	if !view.lastReadingAt.IsZero() {
		out.LastReadingAt = timePtr(view.lastReadingAt)
		reading := view.reading
		out.Reading = &reading
		out.Severity = view.batch.Severity
		out.HasCritical = view.batch.HasCritical
		out.Findings = append(out.Findings, view.batch.Findings...)
		for _, alert := range view.batch.Alerts {
			out.Alerts = append(out.Alerts, AlertView{Alert: alert, Display: alert.Display()})
		}
	}
	out.Online = view.hasData && (s.deps.StaleAfter <= 0 || now.Sub(view.lastReadingAt) <= s.deps.StaleAfter)
	if !view.hasData {
		out.Severity = domain.SeverityNoData
	}

	out.Notification = NotificationView{
		Active:      view.sched.Active(),
		Fingerprint: view.sched.Fingerprint,
	}
	if view.sched.Active() {
		out.Notification.Title = view.sched.Current.Title
		out.Notification.Body = view.sched.Current.Body
		out.Notification.Critical = view.sched.Current.Critical
	}
	if !view.sched.LastSentAt.IsZero() {
		out.Notification.LastSentAt = timePtr(view.sched.LastSentAt)
	}
	if !view.nextRepeatAt.IsZero() {
		out.Notification.NextRepeatAt = timePtr(view.nextRepeatAt)
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
