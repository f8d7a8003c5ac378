// Package persist provides durable keyed string-list storage for the sync
// core: serialized operations, optimistic tasks, and deleted ids survive an
// app relaunch so pending work is never lost.
package persist

import "context"

// Store is the durable key/value-list contract the sync core depends on.
// A missing key reads as an empty list, not an error.
type Store interface {
	// ReadList returns the values stored under key, in write order.
	ReadList(ctx context.Context, key string) ([]string, error)

	// WriteList durably replaces the values stored under key.
	WriteList(ctx context.Context, key string, values []string) error
}
