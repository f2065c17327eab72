package engine

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/lifecycle"
	"github.com/marmos91/tiercache/pkg/repository"
)

func writeJPEG(t *testing.T, dir, name string) asset.Key {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(64, 48, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return asset.NewKey(path)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Pipeline.MemoryClass = "generous"
	cfg.Pipeline.FetchTimeout = 5 * time.Second
	return cfg
}

// fixture: root holds a.jpg; folder 7 (child of root) holds b.jpg and c.jpg.
type fixture struct {
	dir     string
	a, b, c asset.Key
	repo    *repository.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir: dir,
		a:   writeJPEG(t, dir, "a.jpg"),
		b:   writeJPEG(t, dir, "b.jpg"),
		c:   writeJPEG(t, dir, "c.jpg"),
	}
	f.repo = repository.NewMemory()
	f.repo.AddImages(repository.Root, f.a)
	require.NoError(t, f.repo.AddFolder(7, repository.Root))
	f.repo.AddImages(7, f.b, f.c)
	return f
}

func startEngine(t *testing.T, repo repository.Repository, opts ...Option) *Engine {
	t.Helper()
	e, err := New(testConfig(), repo, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := New(testConfig(), nil)
	require.Error(t, err)
}

func TestEndToEnd_RootToChildAndBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := startEngine(t, f.repo)
	coord := e.Coordinator()

	// Root: its asset plus the child horizon are loaded once each.
	require.True(t, e.Navigate(ctx, repository.Root))
	e.Prefetcher().Wait()

	data, ok := e.Fetch(ctx, f.a, asset.PriorityInteractive)
	require.True(t, ok)
	assert.NotEmpty(t, data)
	assert.True(t, coord.HasTexture(f.a))
	require.Eventually(t, func() bool {
		return e.Snapshot().Worker.Completed == 3
	}, 2*time.Second, 10*time.Millisecond)

	// Child 7: both assets are planned at full fidelity and decoded.
	require.True(t, e.Navigate(ctx, 7))
	e.Prefetcher().Wait()

	plan, ok := e.Prefetcher().LastPlan()
	require.True(t, ok)
	assert.Equal(t, repository.FolderID(7), plan.Folder)
	assert.ElementsMatch(t, []asset.Key{f.b, f.c}, plan.Current)
	assert.Equal(t, []asset.Key{f.a}, plan.ParentAssets)
	assert.True(t, coord.HasTexture(f.b))
	assert.True(t, coord.HasTexture(f.c))

	// Back to root: a is still a Tier-2 hit and nothing was reloaded.
	require.True(t, e.Navigate(ctx, repository.Root))
	e.Prefetcher().Wait()

	assert.True(t, coord.HasBytes(f.a))
	assert.Equal(t, 3, e.Snapshot().Worker.Completed)

	snap := e.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, repository.Root, *snap.Current)
	assert.Equal(t, []repository.FolderID{repository.Root, 7}, snap.Recent)
	assert.Equal(t, 3, snap.Cache.Bytes.Items)
	assert.Equal(t, string(lifecycle.StateForeground), snap.Lifecycle)
}

func TestNavigate_SameFolderIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := startEngine(t, f.repo)

	require.True(t, e.Navigate(ctx, 7))
	assert.False(t, e.Navigate(ctx, 7))
	e.Prefetcher().Wait()
	assert.Equal(t, []repository.FolderID{7}, e.Tracker().Recent())
}

func TestIngest_PersistsThroughWorker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := startEngine(t, f.repo)

	key := asset.NewKey(filepath.Join(f.dir, "captures", "d.jpg"))
	payload := []byte("captured bytes")

	conf := e.Ingest(key, payload)
	assert.True(t, e.Coordinator().HasBytes(key))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.True(t, conf.Wait(waitCtx))

	onDisk, err := os.ReadFile(key.String())
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

func TestWithoutWorker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := startEngine(t, f.repo, WithoutWorker())

	assert.False(t, e.Ready())

	_, ok := e.Fetch(ctx, f.a, asset.PriorityInteractive)
	assert.False(t, ok)

	key := asset.NewKey(filepath.Join(f.dir, "sync.bin"))
	conf := e.Ingest(key, []byte("sync"))
	ok, resolved := conf.Result()
	assert.True(t, resolved)
	assert.True(t, ok)
}

func TestStart_RestoresPersistedFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := lifecycle.NewMemoryStore()

	first, err := New(testConfig(), f.repo, WithStateStore(store))
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))

	require.True(t, first.Navigate(ctx, 7))
	first.SetVisible([]asset.Key{f.b})
	first.SetScrollOffset(42)
	require.NoError(t, first.OnBackground(ctx))
	require.NoError(t, first.Close(ctx))

	second := startEngine(t, f.repo, WithStateStore(store))
	cur, ok := second.Navigation().Current()
	require.True(t, ok)
	assert.Equal(t, repository.FolderID(7), cur)
	assert.Equal(t, []asset.Key{f.b}, second.Governor().Visible())
}

func TestStart_BadgerStateDir(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.Lifecycle.StateDir = filepath.Join(t.TempDir(), "state")

	e, err := New(cfg, f.repo)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Close(context.Background()))
}

func TestMemoryPressure_Foreground(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := startEngine(t, f.repo)

	require.True(t, e.Navigate(ctx, repository.Root))
	e.Prefetcher().Wait()

	n := e.OnMemoryPressure(ctx, lifecycle.PressureHigh)
	assert.Equal(t, 6, n) // three textures, then three byte entries
	assert.Equal(t, 0, e.Snapshot().Cache.Bytes.Items)
}
