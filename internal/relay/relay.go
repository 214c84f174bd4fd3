package relay

import (
	"context"
	"time"

	"waterwatch/internal/domain"
	"waterwatch/internal/engine"

	"github.com/google/uuid"
)

// Handler receives one new relay entry.
type Handler func(ctx context.Context, entry domain.RelayEntry)

// Channel is the shared medium propagating alerts between instances.
// Params: context, entries, and retention cutoff.
// Returns: publish/subscribe/sweep errors.
type Channel interface {
	Publish(ctx context.Context, entry domain.RelayEntry) error
	// Subscribe registers handler for entries published after the call.
	// Delivery stops when ctx is cancelled.
	Subscribe(ctx context.Context, handler Handler) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// NewEntry builds relay entry from a triggering batch.
// Params: origin instance id, relay topic, alert batch, and creation time.
// Returns: entry carrying the most severe alert; false for empty batch.
func NewEntry(origin, topic string, batch domain.AlertBatch, now time.Time) (domain.RelayEntry, bool) {
	title, message, alert, ok := engine.RelayMessage(batch)
	if !ok {
		return domain.RelayEntry{}, false
	}
	return domain.RelayEntry{
		ID:        uuid.NewString(),
		Origin:    origin,
		Topic:     topic,
		Title:     title,
		Message:   message,
		Severity:  alert.Severity,
		Parameter: alert.Parameter,
		Value:     alert.Value,
		ValueText: alert.Parameter.FormatValue(alert.Value),
		CreatedAt: now.UTC(),
	}, true
}
