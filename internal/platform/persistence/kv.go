package persistence

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("persistence: key not found")
	ErrStoreClosed = errors.New("persistence: store is closed")
)

// KeyValueStore holds opaque documents under string keys. Put replaces the
// whole value in one write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
