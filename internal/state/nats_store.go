package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"waterwatch/internal/config"
	"waterwatch/internal/domain"

	"github.com/nats-io/nats.go"
)

const natsKeyPrefix = "notification."

// NATSStore persists notification records in a JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed state store shared by all instances of one device.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens or creates the state bucket.
// Params: NATS settings from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	kv, err := OpenBucket(nc, settings.StateBucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSStore{nc: nc, kv: kv}, nil
}

// OpenBucket binds to a KV bucket, creating it when missing.
// Params: NATS connection and bucket name.
// Returns: KV handle or JetStream error.
func OpenBucket(nc *nats.Conn, bucket string) (nats.KeyValue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return kv, nil
}

// Load reads stored record.
// Params: device key.
// Returns: record or ErrNotFound.
func (s *NATSStore) Load(_ context.Context, key string) (domain.NotificationRecord, error) {
	entry, err := s.kv.Get(natsKeyPrefix + key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return domain.NotificationRecord{}, ErrNotFound
		}
		return domain.NotificationRecord{}, fmt.Errorf("get record: %w", err)
	}
	var record domain.NotificationRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return domain.NotificationRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// Save writes record unconditionally.
// Params: device key and record.
// Returns: encode/put error.
func (s *NATSStore) Save(_ context.Context, key string, record domain.NotificationRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.kv.Put(natsKeyPrefix+key, body); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Clear deletes stored record.
// Params: device key.
// Returns: delete error other than missing key.
func (s *NATSStore) Clear(_ context.Context, key string) error {
	if err := s.kv.Delete(natsKeyPrefix + key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
