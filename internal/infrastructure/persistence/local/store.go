// Package local implements the device-local persistence layer: a durable
// BadgerDB primary store with a simple JSON file fallback, both addressed
// through named partitions. The layered store chains the two so a read can
// succeed even when the primary never initialized.
package local

import (
	"context"
	"errors"
)

// Partition names a logical key-value namespace.
type Partition string

// The partitions the progress core uses. Partition creation is idempotent:
// in both backing stores a partition is a key prefix, so repeated opens
// never fail on an existing partition.
const (
	// PartitionProgress holds the profile snapshot under KeyProfile.
	PartitionProgress Partition = "progress"

	// PartitionMeta holds the auth token and guest identifier.
	PartitionMeta Partition = "meta"

	// PartitionPacks caches lesson content blobs (outside core scope).
	PartitionPacks Partition = "packs"

	// PartitionQueue is reserved for offline request queuing.
	PartitionQueue Partition = "queue"
)

// Well-known keys.
const (
	// KeyProfile is the fixed key of the profile snapshot in PartitionProgress.
	KeyProfile = "profile"

	// KeyJWT is the auth token key in PartitionMeta.
	KeyJWT = "jwt"

	// KeyGuestID is the guest identifier key in PartitionMeta.
	KeyGuestID = "guest_id"
)

// Errors.
var (
	// ErrNotFound is returned when a key is absent from a store.
	ErrNotFound = errors.New("local: key not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("local: store closed")
)

// Store is a partitioned key-value store. Implementations may suspend on
// I/O; all operations accept a context.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, p Partition, key string) ([]byte, error)

	// Put stores the value under key.
	Put(ctx context.Context, p Partition, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, p Partition, key string) error

	// Close releases store resources.
	Close() error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
