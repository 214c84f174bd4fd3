package scheduler

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	"waterwatch/internal/domain"
	"waterwatch/internal/engine"
)

const (
	// DefaultInterval is the repeat cadence for an unresolved condition.
	DefaultInterval = 300 * time.Second
	// DefaultNotificationID is the fixed local notification id.
	DefaultNotificationID = "water-quality-alert"
)

// EffectKind names one side effect requested by a transition.
type EffectKind int

const (
	// EffectDisplay shows (or replaces) the local notification.
	EffectDisplay EffectKind = iota
	// EffectCancelDisplay removes the local notification.
	EffectCancelDisplay
	// EffectStartTimer arms the repeating timer for one generation.
	EffectStartTimer
	// EffectStopTimer disarms the repeating timer.
	EffectStopTimer
	// EffectPersist stores fingerprint and last dispatch time.
	EffectPersist
	// EffectClearPersisted removes stored fingerprint and last dispatch time.
	EffectClearPersisted
	// EffectRelay publishes the most severe alert to other instances.
	EffectRelay
)

var effectNames = map[EffectKind]string{
	EffectDisplay:        "display",
	EffectCancelDisplay:  "cancel_display",
	EffectStartTimer:     "start_timer",
	EffectStopTimer:      "stop_timer",
	EffectPersist:        "persist",
	EffectClearPersisted: "clear_persisted",
	EffectRelay:          "relay",
}

// String returns effect name for logs and metrics.
func (k EffectKind) String() string {
	return effectNames[k]
}

// Effect is one side effect the session must execute after a transition.
// Params: kind plus payload relevant to that kind.
// Returns: effect descriptor; executing it never feeds back into the transition.
type Effect struct {
	Kind         EffectKind
	Notification domain.Notification
	Record       domain.NotificationRecord
	Generation   uint64
	Delay        time.Duration
	Batch        domain.AlertBatch
}

// State is the whole notification state threaded through transitions.
// Params: stored fingerprint, last dispatch time, timer marker and generation, current notification.
// Returns: immutable value; transitions return a new state.
type State struct {
	Fingerprint string
	LastSentAt  time.Time
	TimerActive bool
	Generation  uint64
	Current     domain.Notification
}

// Active reports whether scheduler is in Active state.
func (s State) Active() bool {
	return s.TimerActive
}

// Record returns durable projection of state.
func (s State) Record() domain.NotificationRecord {
	return domain.NotificationRecord{Fingerprint: s.Fingerprint, LastSentAt: s.LastSentAt}
}

// Restore rebuilds state after process restart.
// Params: persisted fingerprint and last dispatch time.
// Returns: Idle state with no timer.
func Restore(record domain.NotificationRecord) State {
	return State{Fingerprint: record.Fingerprint, LastSentAt: record.LastSentAt}
}

// Policy holds scheduling constants.
// Params: repeat interval and fixed notification id.
// Returns: pure transition functions over State.
type Policy struct {
	Interval       time.Duration
	NotificationID string
}

// DefaultPolicy returns policy with 300s cadence.
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, NotificationID: DefaultNotificationID}
}

// Fingerprint hashes notification title and message.
// Params: title and condensed message.
// Returns: hex sha1 digest.
func Fingerprint(title, message string) string {
	sum := sha1.Sum([]byte(title + "|" + message))
	return hex.EncodeToString(sum[:])
}

// OnBatch applies one evaluation result.
// Params: current state, alert batch, and current time.
// Returns: next state and ordered effects.
func (p Policy) OnBatch(state State, batch domain.AlertBatch, now time.Time) (State, []Effect) {
	if batch.Empty() {
		return p.reset(state)
	}
	title, message := engine.Summarize(batch)
	if state.TimerActive && Fingerprint(title, message) == state.Fingerprint {
		return state, nil
	}
	return p.Force(state, batch, now)
}

// Force dispatches batch immediately regardless of stored fingerprint.
// Params: current state, non-empty alert batch, and current time.
// Returns: Active state with a fresh timer generation and dispatch/persist/relay effects.
func (p Policy) Force(state State, batch domain.AlertBatch, now time.Time) (State, []Effect) {
	if batch.Empty() {
		return p.reset(state)
	}
	title, message := engine.Summarize(batch)
	effects := make([]Effect, 0, 5)
	if state.TimerActive {
		effects = append(effects, Effect{Kind: EffectStopTimer, Generation: state.Generation})
	}
	next := State{
		Fingerprint: Fingerprint(title, message),
		LastSentAt:  now,
		TimerActive: true,
		Generation:  state.Generation + 1,
	}
	next.Current = domain.Notification{
		ID:          p.notificationID(),
		Title:       title,
		Body:        message,
		Critical:    batch.HasCritical,
		Fingerprint: next.Fingerprint,
		CreatedAt:   now,
	}
	effects = append(effects,
		Effect{Kind: EffectDisplay, Notification: next.Current},
		Effect{Kind: EffectStartTimer, Generation: next.Generation, Delay: p.interval()},
		Effect{Kind: EffectPersist, Record: next.Record()},
		Effect{Kind: EffectRelay, Batch: batch},
	)
	return next, effects
}

// OnTimer handles one repeating timer firing.
// Params: current state, generation carried by the timer, and current time.
// Returns: unchanged state for stale generations, otherwise re-dispatch and reschedule effects.
func (p Policy) OnTimer(state State, generation uint64, now time.Time) (State, []Effect) {
	if !state.TimerActive || generation != state.Generation {
		return state, nil
	}
	next := state
	next.LastSentAt = now
	next.Generation = state.Generation + 1
	repeat := state.Current
	repeat.Repeat = true
	repeat.CreatedAt = now
	return next, []Effect{
		{Kind: EffectDisplay, Notification: repeat},
		{Kind: EffectStartTimer, Generation: next.Generation, Delay: p.interval()},
		{Kind: EffectPersist, Record: next.Record()},
	}
}

// OnShutdown stops the repeating timer of the owning session.
// Params: current state.
// Returns: state without timer and stop effect when a timer was running.
func (p Policy) OnShutdown(state State) (State, []Effect) {
	if !state.TimerActive {
		return state, nil
	}
	next := state
	next.TimerActive = false
	return next, []Effect{{Kind: EffectStopTimer, Generation: state.Generation}}
}

func (p Policy) reset(state State) (State, []Effect) {
	if !state.TimerActive && state.Fingerprint == "" && state.LastSentAt.IsZero() {
		return state, nil
	}
	effects := make([]Effect, 0, 3)
	if state.TimerActive {
		effects = append(effects, Effect{Kind: EffectStopTimer, Generation: state.Generation})
	}
	effects = append(effects,
		Effect{Kind: EffectCancelDisplay, Notification: domain.Notification{ID: p.notificationID()}},
		Effect{Kind: EffectClearPersisted},
	)
	return State{Generation: state.Generation}, effects
}

func (p Policy) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p Policy) notificationID() string {
	if p.NotificationID == "" {
		return DefaultNotificationID
	}
	return p.NotificationID
}
