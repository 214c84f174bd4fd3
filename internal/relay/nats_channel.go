package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"waterwatch/internal/config"
	"waterwatch/internal/domain"
	"waterwatch/internal/state"

	"github.com/nats-io/nats.go"
)

// ErrClosed is returned by a channel used after Close.
var ErrClosed = errors.New("relay channel closed")

// NATSChannel stores relay entries in a JetStream KV bucket shared by all instances.
// Params: NATS connection and relay bucket handle.
// Returns: channel with KV watcher subscriptions.
type NATSChannel struct {
	nc     *nats.Conn
	kv     nats.KeyValue
	logger *slog.Logger
}

// NewNATSChannel opens or creates the relay bucket.
// Params: NATS settings and logger for undecodable entries.
// Returns: initialized channel or setup error.
func NewNATSChannel(settings config.NATSConfig, logger *slog.Logger) (*NATSChannel, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	kv, err := state.OpenBucket(nc, settings.RelayBucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSChannel{nc: nc, kv: kv, logger: logger}, nil
}

// Publish puts entry under its id.
func (c *NATSChannel) Publish(_ context.Context, entry domain.RelayEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode relay entry: %w", err)
	}
	if _, err := c.kv.Put(entry.ID, body); err != nil {
		return fmt.Errorf("put relay entry: %w", err)
	}
	return nil
}

// Subscribe watches the bucket for new entries until ctx is done.
// Params: subscription context and handler.
// Returns: watcher setup error.
func (c *NATSChannel) Subscribe(ctx context.Context, handler Handler) error {
	watcher, err := c.kv.WatchAll(nats.UpdatesOnly(), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("watch relay bucket: %w", err)
	}
	go func() {
		defer func() { _ = watcher.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if update == nil || update.Operation() != nats.KeyValuePut {
					continue
				}
				var entry domain.RelayEntry
				if err := json.Unmarshal(update.Value(), &entry); err != nil {
					c.logger.Warn("relay entry decode failed", "key", update.Key(), "error", err.Error())
					continue
				}
				handler(ctx, entry)
			}
		}
	}()
	return nil
}

// DeleteOlderThan purges entries created before cutoff.
// Params: context and cutoff time.
// Returns: purged entry count and first KV error.
func (c *NATSChannel) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := c.kv.Keys(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("list relay keys: %w", err)
	}
	deleted := 0
	for _, key := range keys {
		kvEntry, err := c.kv.Get(key)
		if err != nil {
			if errors.Is(err, nats.ErrKeyNotFound) {
				continue
			}
			return deleted, fmt.Errorf("get relay entry %q: %w", key, err)
		}
		createdAt := kvEntry.Created()
		var entry domain.RelayEntry
		if err := json.Unmarshal(kvEntry.Value(), &entry); err == nil && !entry.CreatedAt.IsZero() {
			createdAt = entry.CreatedAt
		}
		if !createdAt.Before(cutoff) {
			continue
		}
		if err := c.kv.Purge(key); err != nil {
			return deleted, fmt.Errorf("purge relay entry %q: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Close closes underlying NATS connection.
func (c *NATSChannel) Close() error {
	c.nc.Close()
	return nil
}
