package ingest

import (
	"fmt"
	"log/slog"
	"strings"

	"waterwatch/internal/config"
	"waterwatch/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSSubscriber consumes readings from a core NATS subject and forwards to sink.
// Params: NATS connection, subscription, and reading sink.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewNATSSubscriber subscribes to the device reading subject.
// Params: NATS URLs, ingest config, sink, optional logger and metrics.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(urls []string, cfg config.NATSIngestConfig, sink ReadingSink, logger *slog.Logger, m *metrics.Metrics) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(urls, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}

	subscriber := &NATSSubscriber{nc: nc, logger: logger, metrics: m}
	sub, err := nc.Subscribe(cfg.Subject, func(message *nats.Msg) {
		subscriber.handle(sink, message.Subject, message.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %q: %w", cfg.Subject, err)
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flush subscription %q: %w", cfg.Subject, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// handle decodes one message and pushes it to sink.
// Params: sink, subject and payload.
// Returns: none; failures are logged.
func (s *NATSSubscriber) handle(sink ReadingSink, subject string, data []byte) {
	frames, err := decodePayload(data)
	if err != nil {
		s.metrics.ObserveReading(metrics.ResultInvalid)
		if s.logger != nil {
			s.logger.Warn("nats ingest decode failed", "subject", subject, "error", err.Error())
		}
		return
	}
	if err := pushFrames(sink, frames); err != nil && s.logger != nil {
		s.logger.Error("nats ingest push failed", "subject", subject, "error", err.Error())
	}
}

// Close stops NATS subscription and closes connection.
// Params: none.
// Returns: close error from subscription drain.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}
