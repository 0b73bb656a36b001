package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"backoffice/pkg/platform/sentinel"
)

// DefaultKeyPrefix namespaces collection hashes.
const DefaultKeyPrefix = "backoffice:"

// RedisStore keeps each collection in one Redis hash.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) hash(collection string) string {
	return s.prefix + collection
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	value, err := s.client.HGet(ctx, s.hash(collection), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s/%s: %w", collection, key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.hash(collection), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", collection, key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	removed, err := s.client.HDel(ctx, s.hash(collection), key).Result()
	if err != nil {
		return fmt.Errorf("redis hdel %s/%s: %w", collection, key, errors.Join(sentinel.ErrUnavailable, err))
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, collection, key string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.hash(collection), key).Result()
	if err != nil {
		return false, fmt.Errorf("redis hexists %s/%s: %w", collection, key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return ok, nil
}

func (s *RedisStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.HLen(ctx, s.hash(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen %s: %w", collection, errors.Join(sentinel.ErrUnavailable, err))
	}
	return int(n), nil
}

func (s *RedisStore) Keys(ctx context.Context, collection string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hash(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %s: %w", collection, errors.Join(sentinel.ErrUnavailable, err))
	}
	slices.Sort(keys)
	return keys, nil
}
