//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/tiercache/pkg/asset"
)

func TestSQLStore_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tiercache_test"),
		tcpostgres.WithUsername("tiercache_test"),
		tcpostgres.WithPassword("tiercache_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "tiercache_test",
			User:     "tiercache_test",
			Password: "tiercache_test",
		},
	}

	store, err := NewSQLStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	folder, err := store.CreateFolder(ctx, "trip", Root)
	require.NoError(t, err)
	require.NoError(t, store.AddAsset(ctx, folder, "/b.jpg"))
	assert.ErrorIs(t, store.AddAsset(ctx, folder, "/b.jpg"), ErrDuplicateAsset)

	assert.Equal(t, []asset.Key{"/b.jpg"}, store.ImagePathsForFolder(folder))
	assert.Equal(t, []FolderID{folder}, store.SubfolderIDs(Root))

	// Reopening applies no further migrations.
	again, err := NewSQLStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
