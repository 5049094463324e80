package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has never been saved or was deleted.
	ErrNotFound = errors.New("key not found")
)

// Well-known keys shared with the presentation layer's persistence.
const (
	KeyRateLimit       = "rate_limit_data"
	KeySyncData        = "sync_data"
	KeyFollowerIndex   = "follower_history:index"
	keyFollowerHistory = "follower_history:"
)

// FollowerHistoryKey returns the key for one account's snapshot history.
func FollowerHistoryKey(accountID string) string {
	return keyFollowerHistory + accountID
}

// KVStore is the blob store the core persists into.
// Implementations must be safe for concurrent use.
type KVStore interface {
	// Save stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the stored bytes or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases underlying connections.
	Close() error
}
