// Package lock provides short-lived per-registration leases so that two
// deliveries of the same payment event do not run the receipt pipeline at
// the same time.
package lock

import (
	"context"
	"time"
)

// Locker grants exclusive leases on keys. Acquire returns an error wrapping
// sentinel.ErrLocked when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is held until Release or until its TTL lapses.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// RegistrationKey is the lock key for a registration's receipt pipeline.
func RegistrationKey(registrationID string) string {
	return "confreg:receipt-lock:" + registrationID
}
