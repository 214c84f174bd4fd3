package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"waterwatch/internal/domain"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "tank1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty store, got %v", err)
	}
	record := domain.NotificationRecord{
		Fingerprint: "abc",
		LastSentAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, "tank1", record); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, "tank1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fingerprint != record.Fingerprint || !loaded.LastSentAt.Equal(record.LastSentAt) {
		t.Fatalf("unexpected record %+v", loaded)
	}
	if _, err := store.Load(ctx, "tank2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("keys must be isolated, got %v", err)
	}
	if err := store.Clear(ctx, "tank1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx, "tank1"); err != nil {
		t.Fatalf("second clear must be a no-op: %v", err)
	}
	if _, err := store.Load(ctx, "tank1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	exerciseStore(t, store)
}

func TestFileStoreLifecycle(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	record := domain.NotificationRecord{Fingerprint: "f", LastSentAt: time.Unix(1700000000, 0).UTC()}
	if err := first.Save(context.Background(), "tank1", record); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, err := second.Load(context.Background(), "tank1")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if loaded.Fingerprint != "f" || !loaded.LastSentAt.Equal(record.LastSentAt) {
		t.Fatalf("unexpected record %+v", loaded)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
