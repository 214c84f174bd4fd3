package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	"waterwatch/internal/domain"
)

type memorySubscription struct {
	ctx     context.Context
	handler Handler
}

// MemoryChannel is an in-process relay channel for single mode and tests.
// Params: none.
// Returns: channel delivering entries synchronously on Publish.
type MemoryChannel struct {
	mu      sync.Mutex
	entries map[string]domain.RelayEntry
	subs    []memorySubscription
	closed  bool
}

// NewMemoryChannel creates empty in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{entries: map[string]domain.RelayEntry{}}
}

// Publish stores entry and delivers it to live subscribers.
func (c *MemoryChannel) Publish(ctx context.Context, entry domain.RelayEntry) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.entries[entry.ID] = entry
	subs := make([]memorySubscription, 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.ctx.Err() == nil {
			subs = append(subs, sub)
		}
	}
	c.subs = subs
	c.mu.Unlock()

	for _, sub := range subs {
		sub.handler(sub.ctx, entry)
	}
	return nil
}

// Subscribe registers handler until ctx is done.
func (c *MemoryChannel) Subscribe(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.subs = append(c.subs, memorySubscription{ctx: ctx, handler: handler})
	return nil
}

// DeleteOlderThan removes entries created before cutoff.
func (c *MemoryChannel) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for id, entry := range c.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(c.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Entries returns stored entries ordered by creation time.
func (c *MemoryChannel) Entries() []domain.RelayEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.RelayEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close drops subscribers and rejects further use.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = nil
	return nil
}
