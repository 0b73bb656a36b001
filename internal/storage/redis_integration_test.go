//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"backoffice/internal/storage"
	"backoffice/pkg/testutil/containers"
)

func TestRedisStoreSuite(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	suite.Run(t, &StoreSuite{newStore: func() storage.Store {
		if err := rc.FlushAll(context.Background()); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return storage.NewRedisStore(rc.Client, storage.WithKeyPrefix("test:"))
	}})
}
