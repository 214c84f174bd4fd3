package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"waterwatch/internal/domain"
)

// FileStore keeps notification records in one JSON document on local disk.
// Params: file path; parent directory is created on first write.
// Returns: durable single-instance store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates file-backed store and validates existing content.
// Params: JSON file path.
// Returns: store or decode error for a corrupt file.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{path: path}
	if _, err := store.read(); err != nil {
		return nil, err
	}
	return store, nil
}

// Load returns stored record.
// Params: device key.
// Returns: record or ErrNotFound.
func (s *FileStore) Load(_ context.Context, key string) (domain.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return domain.NotificationRecord{}, err
	}
	record, ok := records[key]
	if !ok {
		return domain.NotificationRecord{}, ErrNotFound
	}
	return record, nil
}

// Save writes record and replaces the file atomically.
// Params: device key and record.
// Returns: read/write error.
func (s *FileStore) Save(_ context.Context, key string, record domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records[key] = record
	return s.write(records)
}

// Clear removes stored record.
// Params: device key.
// Returns: read/write error.
func (s *FileStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.write(records)
}

// Close releases file store resources.
// Params: none.
// Returns: nil.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() (map[string]domain.NotificationRecord, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]domain.NotificationRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	records := make(map[string]domain.NotificationRecord)
	if len(body) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode state file %q: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) write(records map[string]domain.NotificationRecord) error {
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
