package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"confreg/pkg/platform/sentinel"
)

// MemoryLocker is a process-local Locker for single-instance deployments
// and tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
	seq    uint64
	now    func() time.Time
}

type memoryEntry struct {
	id        uint64
	expiresAt time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryEntry), now: time.Now}
}

// WithClock overrides time.Now, for tests.
func (l *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	l.now = now
	return l
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.leases[key]; ok && now.Before(e.expiresAt) {
		return nil, fmt.Errorf("acquire %s: %w", key, sentinel.ErrLocked)
	}
	l.seq++
	l.leases[key] = memoryEntry{id: l.seq, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, id: l.seq}, nil
}

// Held reports whether key is currently leased.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.leases[key]
	return ok && l.now().Before(e.expiresAt)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	id     uint64
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	e, ok := l.locker.leases[l.key]
	if !ok || e.id != l.id {
		return fmt.Errorf("release %s: lease expired", l.key)
	}
	delete(l.locker.leases, l.key)
	return nil
}
