package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/asset"
)

func testStores(t *testing.T) map[string]StateStore {
	t.Helper()

	onDisk, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = onDisk.Close() })

	inMem, err := OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = inMem.Close() })

	return map[string]StateStore{
		"badger":        onDisk,
		"badger-memory": inMem,
		"memory":        NewMemoryStore(),
	}
}

func TestStateStore_RoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx)
			assert.ErrorIs(t, err, ErrNoState)

			saved := NavState{
				Folder:       7,
				HasFolder:    true,
				ScrollOffset: 42,
				Visible:      []asset.Key{"/b.jpg", "/c.jpg"},
				SavedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			require.NoError(t, store.Save(ctx, saved))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved.Folder, loaded.Folder)
			assert.Equal(t, saved.Visible, loaded.Visible)
			assert.Equal(t, saved.ScrollOffset, loaded.ScrollOffset)
			assert.True(t, saved.SavedAt.Equal(loaded.SavedAt))

			saved.Folder = 8
			require.NoError(t, store.Save(ctx, saved))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved.Folder, loaded.Folder)
		})
	}
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, NavState{Folder: 3, HasFolder: true}))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	state, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), int64(state.Folder))
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	store, err := OpenBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, store.Save(ctx, NavState{}))
}
