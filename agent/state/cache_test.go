package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	st := NewWorkingState("s1", now)
	st.AppendUser("hello")

	if err := c.Put(context.Background(), st); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SessionID != "s1" || len(got.Messages) != 1 {
		t.Fatalf("unexpected cached state: %+v", got)
	}

	// Cached copies must not alias the caller's state in either direction.
	got.AppendUser("mutation")
	again, err := c.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if len(again.Messages) != 1 {
		t.Fatalf("cache aliased a returned copy: %d messages", len(again.Messages))
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	if _, err := c.Get(context.Background(), "absent"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(WithCacheTTL(time.Minute))
	c.now = func() time.Time { return clock }

	if err := c.Put(context.Background(), NewWorkingState("s1", clock)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := c.Get(context.Background(), "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(WithMaxEntries(2))
	c.now = func() time.Time { return clock }

	if err := c.Put(context.Background(), NewWorkingState("old", clock)); err != nil {
		t.Fatalf("Put(old) error = %v", err)
	}
	clock = clock.Add(time.Minute)
	if err := c.Put(context.Background(), NewWorkingState("mid", clock)); err != nil {
		t.Fatalf("Put(mid) error = %v", err)
	}
	clock = clock.Add(time.Minute)
	if err := c.Put(context.Background(), NewWorkingState("new", clock)); err != nil {
		t.Fatalf("Put(new) error = %v", err)
	}

	if _, err := c.Get(context.Background(), "old"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("stalest entry must be evicted, got %v", err)
	}
	if _, err := c.Get(context.Background(), "new"); err != nil {
		t.Fatalf("newest entry must survive, got %v", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	if err := c.Put(context.Background(), NewWorkingState("s1", now)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(context.Background(), "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}
}
