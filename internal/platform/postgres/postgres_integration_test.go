//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/config"
	"backoffice/internal/platform/postgres"
	"backoffice/pkg/testutil/containers"
)

func TestOpen(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	db, err := postgres.Open(context.Background(), config.PostgresConfig{DSN: pg.DSN, MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var one int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}
