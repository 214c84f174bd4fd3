package state

import (
	"context"
	"errors"

	"waterwatch/internal/domain"
)

// ErrNotFound indicates absent notification record.
var ErrNotFound = errors.New("not found")

// Store persists the durable part of notification state across restarts.
// Params: key/value operations keyed by device id.
// Returns: backend persistence behavior.
type Store interface {
	Load(ctx context.Context, key string) (domain.NotificationRecord, error)
	Save(ctx context.Context, key string, record domain.NotificationRecord) error
	Clear(ctx context.Context, key string) error
	Close() error
}
