package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/foldertrack"
	"github.com/marmos91/tiercache/pkg/navigation"
	"github.com/marmos91/tiercache/pkg/repository"
)

type fakeCache struct {
	mu        sync.Mutex
	bytes     map[asset.Key]bool
	textures  map[asset.Key]bool
	evicted   []asset.Key
	itemCalls []int
}

func newFakeCache() *fakeCache {
	return &fakeCache{bytes: map[asset.Key]bool{}, textures: map[asset.Key]bool{}}
}

func (f *fakeCache) HasBytes(k asset.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes[k]
}

func (f *fakeCache) HasTexture(k asset.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textures[k]
}

func (f *fakeCache) Redecode(_ context.Context, k asset.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.bytes[k] {
		return false
	}
	f.textures[k] = true
	return true
}

func (f *fakeCache) EvictAssets(keys []asset.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if f.bytes[k] {
			n++
		}
		if f.textures[k] {
			n++
		}
		delete(f.bytes, k)
		delete(f.textures, k)
		f.evicted = append(f.evicted, k)
	}
	return n
}

func (f *fakeCache) EvictItems(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls = append(f.itemCalls, n)
	return n
}

type fixture struct {
	repo    *repository.Memory
	nav     *navigation.Signal
	tracker *foldertrack.Tracker
	cache   *fakeCache
	store   *MemoryStore
	gov     *Governor
}

// newFixture builds root -> 1 -> 2 and root -> 3, 4, 5, each folder holding
// one asset named after it, all resident in both tiers.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemory()
	require.NoError(t, repo.AddFolder(1, repository.Root))
	require.NoError(t, repo.AddFolder(2, 1))
	for _, id := range []repository.FolderID{3, 4, 5} {
		require.NoError(t, repo.AddFolder(id, repository.Root))
	}

	cache := newFakeCache()
	for _, id := range []repository.FolderID{repository.Root, 1, 2, 3, 4, 5} {
		k := asset.Key("/" + id.String() + ".jpg")
		repo.AddImages(id, k)
		cache.bytes[k] = true
		cache.textures[k] = true
	}

	f := &fixture{
		repo:    repo,
		nav:     navigation.New(repo),
		tracker: foldertrack.New(5),
		cache:   cache,
		store:   NewMemoryStore(),
	}
	f.nav.Subscribe(func(_ context.Context, ev navigation.Event) { f.tracker.RecordVisit(ev.Folder) })
	f.gov = New(DefaultConfig(), cache, f.tracker, repo, f.nav, f.store)
	return f
}

func (f *fixture) visit(ids ...repository.FolderID) {
	for _, id := range ids {
		f.nav.Navigate(context.Background(), id)
	}
}

func TestOnBackground_PersistsWithoutEviction(t *testing.T) {
	f := newFixture(t)
	f.visit(1, 2)
	f.gov.SetVisible([]asset.Key{"/2.jpg"})
	f.gov.SetScrollOffset(120.5)

	require.NoError(t, f.gov.OnBackground(context.Background()))
	assert.True(t, f.gov.IsBackgrounded())
	assert.Equal(t, StateBackground, f.gov.State())

	assert.Empty(t, f.cache.evicted)
	assert.Empty(t, f.cache.itemCalls)

	state, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repository.FolderID(2), state.Folder)
	assert.True(t, state.HasFolder)
	assert.Equal(t, 120.5, state.ScrollOffset)
	assert.Equal(t, []asset.Key{"/2.jpg"}, state.Visible)
	assert.False(t, state.SavedAt.IsZero())
}

func TestOnForeground_RedecodesReclaimedTextures(t *testing.T) {
	f := newFixture(t)
	f.gov.SetVisible([]asset.Key{"/1.jpg", "/2.jpg", "/missing.jpg"})
	require.NoError(t, f.gov.OnBackground(context.Background()))

	// The OS reclaimed one texture and one set of bytes.
	delete(f.cache.textures, "/1.jpg")
	delete(f.cache.textures, "/2.jpg")
	delete(f.cache.bytes, "/2.jpg")

	restored := f.gov.OnForeground(context.Background())
	assert.Equal(t, 1, restored)
	assert.True(t, f.cache.textures["/1.jpg"])
	assert.False(t, f.cache.textures["/2.jpg"])
	assert.False(t, f.gov.IsBackgrounded())
}

func TestOnMemoryPressure_Foreground(t *testing.T) {
	f := newFixture(t)

	n := f.gov.OnMemoryPressure(context.Background(), PressureCritical)
	assert.Equal(t, 25, n)
	assert.Equal(t, []int{25}, f.cache.itemCalls)
	assert.Empty(t, f.cache.evicted)
}

func TestOnMemoryPressure_BackgroundPopsOldestUnpinned(t *testing.T) {
	f := newFixture(t)
	f.visit(3, 4, 5, 1, 2)
	require.NoError(t, f.gov.OnBackground(context.Background()))

	// Tracker oldest-first: 3, 4, 5, 1, 2. AncestorSet of 2 pins 2, 1, root.
	n := f.gov.OnMemoryPressure(context.Background(), PressureHigh)
	assert.Equal(t, 4, n)
	assert.Equal(t, []asset.Key{"/3.jpg", "/4.jpg"}, f.cache.evicted)
	assert.Equal(t, []repository.FolderID{2, 1, 5}, f.tracker.Recent())

	assert.True(t, f.cache.bytes["/2.jpg"])
	assert.True(t, f.cache.bytes["/1.jpg"])
}

func TestOnMemoryPressure_BackgroundLevelBounds(t *testing.T) {
	f := newFixture(t)
	f.visit(3, 4, 5, 2)
	require.NoError(t, f.gov.OnBackground(context.Background()))

	f.gov.OnMemoryPressure(context.Background(), Pressure(10))
	assert.Equal(t, []asset.Key{"/3.jpg", "/4.jpg", "/5.jpg"}, f.cache.evicted)
}

func TestOnMemoryPressure_BackgroundFallback(t *testing.T) {
	f := newFixture(t)
	f.visit(1, 2)
	require.NoError(t, f.gov.OnBackground(context.Background()))

	// Every tracked folder is pinned.
	n := f.gov.OnMemoryPressure(context.Background(), PressureModerate)
	assert.Equal(t, 25, n)
	assert.Equal(t, []int{25}, f.cache.itemCalls)
	assert.Empty(t, f.cache.evicted)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)

	_, err := f.gov.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	f.visit(4)
	f.gov.SetVisible([]asset.Key{"/4.jpg"})
	f.gov.SetScrollOffset(9)
	require.NoError(t, f.gov.OnBackground(context.Background()))

	fresh := New(DefaultConfig(), f.cache, foldertrack.New(5), f.repo, nil, f.store)
	state, err := fresh.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repository.FolderID(4), state.Folder)
	assert.Equal(t, []asset.Key{"/4.jpg"}, fresh.Visible())
}

func TestPressureString(t *testing.T) {
	assert.Equal(t, "moderate", PressureModerate.String())
	assert.Equal(t, "critical", PressureCritical.String())
	assert.Equal(t, "pressure(9)", Pressure(9).String())
}
