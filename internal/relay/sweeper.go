package relay

import (
	"context"
	"log/slog"
	"time"

	"waterwatch/internal/clock"
	"waterwatch/internal/metrics"
)

// Sweeper bounds relay storage by deleting entries past retention.
// Params: channel, retention window, sweep interval, clock, logger and metrics.
// Returns: periodic sweep runner.
type Sweeper struct {
	Channel   Channel
	Retention time.Duration
	Interval  time.Duration
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Sweep deletes entries created before now minus retention.
// Params: context.
// Returns: deleted entry count and channel error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	deleted, err := s.Channel.DeleteOlderThan(ctx, now.Add(-s.Retention))
	s.Metrics.ObserveRelayEntries(metrics.ResultSwept, deleted)
	return deleted, err
}

// Run sweeps once immediately and then every Interval until ctx is done.
// Params: context.
// Returns: after context cancellation.
func (s *Sweeper) Run(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sweep := func() {
		deleted, err := s.Sweep(ctx)
		if err != nil {
			logger.Warn("relay sweep failed", "deleted", deleted, "error", err.Error())
			return
		}
		if deleted > 0 {
			logger.Info("relay sweep", "deleted", deleted)
		}
	}

	sweep()
	if s.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
