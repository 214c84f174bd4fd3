package relay

import (
	"context"
	"time"

	"waterwatch/internal/domain"
	"waterwatch/internal/metrics"
)

// Publisher turns triggering batches into relay entries.
// Params: channel, origin instance id, topic and metrics.
// Returns: publish helper used by the session dispatch path.
type Publisher struct {
	Channel Channel
	Origin  string
	Topic   string
	Metrics *metrics.Metrics
}

// Publish writes the most severe alert of batch to the channel.
// Params: context, batch and creation time.
// Returns: published entry, false for empty batch, and channel error.
func (p *Publisher) Publish(ctx context.Context, batch domain.AlertBatch, now time.Time) (domain.RelayEntry, bool, error) {
	entry, ok := NewEntry(p.Origin, p.Topic, batch, now)
	if !ok {
		return domain.RelayEntry{}, false, nil
	}
	if err := p.Channel.Publish(ctx, entry); err != nil {
		p.Metrics.ObserveRelayEntries(metrics.ResultError, 1)
		return entry, true, err
	}
	p.Metrics.ObserveRelayEntries(metrics.ResultPublished, 1)
	return entry, true, nil
}
