// Package locker provides short-lived named locks that serialize status
// decisions on a single ticket.
package locker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the lock is held by another owner.
var ErrNotAcquired = errors.New("lock held by another owner")

// Release frees a held lock. Releasing an expired or stolen lock is a no-op.
type Release func(ctx context.Context) error

// Locker acquires exclusive named locks with a lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// LocalLocker is a process-local Locker.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]lease
	nowFn func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

// NewLocalLocker returns an empty process-local locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]lease), nowFn: time.Now}
}

// Acquire takes key for ttl or fails with ErrNotAcquired.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if current, ok := l.held[key]; ok && now.Before(current.expires) {
		return nil, ErrNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.held[key]; ok && current.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
