package relay

import (
	"context"
	"log/slog"
	"time"

	"waterwatch/internal/clock"
	"waterwatch/internal/domain"
	"waterwatch/internal/metrics"
	"waterwatch/internal/notify"
)

// Receiver rebroadcasts relay entries from other instances through local transport.
// Params: own origin id, staleness window, notification id, transport, clock, logger and metrics.
// Returns: handler suitable for Channel.Subscribe.
type Receiver struct {
	Origin         string
	Staleness      time.Duration
	NotificationID string
	Transport      notify.Transport
	Clock          clock.Clock
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// Handle processes one relay entry.
// Params: context and received entry.
// Returns: outcome label (own, stale, displayed, denied, error).
func (r *Receiver) Handle(ctx context.Context, entry domain.RelayEntry) string {
	logger := r.logger().With("relay_id", entry.ID, "origin", entry.Origin)
	if entry.Origin != "" && entry.Origin == r.Origin {
		r.Metrics.ObserveRelayEntries(metrics.ResultOwn, 1)
		return metrics.ResultOwn
	}
	if age := entry.Age(r.now()); r.Staleness > 0 && age > r.Staleness {
		logger.Debug("relay entry stale, dropped", "age", age.String())
		r.Metrics.ObserveRelayEntries(metrics.ResultStale, 1)
		return metrics.ResultStale
	}

	notification := domain.Notification{
		ID:        r.NotificationID,
		Title:     entry.Title,
		Body:      entry.Message,
		Critical:  entry.Severity == domain.SeverityCritical,
		CreatedAt: entry.CreatedAt,
	}
	if err := r.Transport.Display(ctx, notification); err != nil {
		if notify.IsPermissionDenied(err) {
			logger.Warn("relay display denied", "error", err.Error())
			r.Metrics.ObserveNotification("relay", metrics.ResultDenied)
			return metrics.ResultDenied
		}
		logger.Error("relay display failed", "error", err.Error())
		r.Metrics.ObserveNotification("relay", metrics.ResultError)
		return metrics.ResultError
	}
	logger.Info("relay entry displayed", "parameter", entry.Parameter, "severity", entry.Severity.String())
	r.Metrics.ObserveNotification("relay", metrics.ResultOK)
	r.Metrics.ObserveRelayEntries(metrics.ResultDisplayed, 1)
	return metrics.ResultDisplayed
}

// Subscribe attaches receiver to channel.
func (r *Receiver) Subscribe(ctx context.Context, channel Channel) error {
	return channel.Subscribe(ctx, func(ctx context.Context, entry domain.RelayEntry) {
		r.Handle(ctx, entry)
	})
}

func (r *Receiver) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

func (r *Receiver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
