package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s := Session{ID: "s1", Email: "alice@example.com", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", got.Email)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Save(ctx, Session{ID: "old", ExpiresAt: now.Add(-time.Second)})
	_ = store.Save(ctx, Session{ID: "new", ExpiresAt: now.Add(time.Hour)})
	if n := store.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept session, got %d", n)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}
	if err := store.Delete(ctx, "new"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
