package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("token store: key not found")

// ErrUnavailable is returned when the backing storage cannot be used at all,
// e.g. the storage directory is unreadable. It is never masked by a silent
// fallback to another store.
var ErrUnavailable = errors.New("token store: storage unavailable")

// Store is the token persistence capability. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Remove deletes the value stored under key. Removing an absent key is
	// not an error.
	Remove(ctx context.Context, key string) error
}
