package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository stores values of T as JSON in one collection.
type Repository[T any] struct {
	store      Store
	collection string
	key        func(T) string
}

// NewRepository creates a repository; key extracts the id of a value.
func NewRepository[T any](store Store, collection string, key func(T) string) *Repository[T] {
	return &Repository[T]{store: store, collection: collection, key: key}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.collection
}

func (r *Repository[T]) Save(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.collection, err)
	}
	return r.store.Set(ctx, r.collection, r.key(v), raw)
}

func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", r.collection, id, err)
	}
	return v, nil
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.collection, id)
}

func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, r.collection, id)
}

func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, r.collection)
}

// List decodes every value in key order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	keys, err := r.store.Keys(ctx, r.collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v, err := r.FindByID(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
