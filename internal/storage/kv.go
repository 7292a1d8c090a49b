// Package storage defines the shared key-value slot every context reads and
// writes, together with its native change feed.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Change is one entry of a backend's change feed. HasValue is false when the
// backend only signals that the key moved on, in which case listeners must
// re-read it. Origin is empty when the backend cannot tell who wrote.
type Change struct {
	Key      string
	Value    []byte
	HasValue bool
	Deleted  bool
	Origin   string
}

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, origin string) error
	Delete(ctx context.Context, key string, origin string) error

	// Watch streams changes to key made after the call. The channel closes
	// when ctx is done or the feed breaks.
	Watch(ctx context.Context, key string) (<-chan Change, error)

	Close() error
}

// FeedBuffer is the channel capacity backends use for watchers.
const FeedBuffer = 64
