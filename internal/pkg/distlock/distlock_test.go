package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestOwnershipValuesAreDistinct(t *testing.T) {
	client := newTestClient(t)

	a := New(client, "sweep", time.Minute)
	b := New(client, "sweep", time.Minute)
	if a.value == "" || b.value == "" {
		t.Fatal("lock created without an ownership value")
	}
	if a.value == b.value {
		t.Errorf("both locks share ownership value %q", a.value)
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := New(client, "sweep", time.Minute)
	b := New(client, "sweep", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first Acquire() = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if ok {
		t.Error("second Acquire() = true, want false while held")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || !ok {
		t.Errorf("Acquire() after release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestReleaseOnlyDropsOwnLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := New(client, "sweep", time.Minute)
	b := New(client, "sweep", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("Acquire() failed")
	}
	// b never held the lock; releasing must not free a's hold.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Error("Acquire() = true after foreign release, lock should still be held")
	}
}

func TestExtendKeepsOwnership(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	l := New(client, "sweep", time.Minute)
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatal("Acquire() failed")
	}
	if err := l.Extend(ctx, 2*time.Minute); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}

	other := New(client, "sweep", time.Minute)
	if ok, _ := other.Acquire(ctx); ok {
		t.Error("Acquire() = true after extend, lock should still be held")
	}
}
