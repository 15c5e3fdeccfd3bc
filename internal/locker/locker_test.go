package locker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ticket:POST-1", time.Minute)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "ticket:POST-1", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second Acquire err = %v, want ErrNotAcquired", err)
	}
	if _, err := l.Acquire(ctx, "ticket:POST-2", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "ticket:POST-1", time.Minute); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestLocalLockerLeaseExpires(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	l := NewLocalLocker()
	l.nowFn = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, err := l.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}

	// the stale holder must not free the new owner's lease
	_ = staleRelease(ctx)
	if _, err := l.Acquire(ctx, "k", time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("stale release freed the lock: err = %v", err)
	}
}
