// Package storage is the key-value persistence collaborator: named
// collections of opaque values addressed by key. Repository builds typed
// save/find access on top of any Store.
package storage

import "context"

// Store is implemented by MemoryStore and RedisStore. Missing keys are
// reported with sentinel.ErrNotFound.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Set(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	Exists(ctx context.Context, collection, key string) (bool, error)
	Count(ctx context.Context, collection string) (int, error)
	// Keys returns the collection's keys in ascending order.
	Keys(ctx context.Context, collection string) ([]string, error)
}
