package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/cache"
	"github.com/marmos91/tiercache/pkg/engine"
	"github.com/marmos91/tiercache/pkg/pipeline"
	"github.com/marmos91/tiercache/pkg/repository"
)

type fakeTree struct {
	children map[repository.FolderID][]repository.FolderID
	names    map[repository.FolderID]map[string]repository.FolderID
	err      error
}

func (f *fakeTree) SubfolderIDs(id repository.FolderID) []repository.FolderID {
	return f.children[id]
}

func (f *fakeTree) FolderByName(_ context.Context, parent repository.FolderID, name string) (repository.FolderID, error) {
	if f.err != nil {
		return repository.Root, f.err
	}
	id, ok := f.names[parent][name]
	if !ok {
		return repository.Root, repository.ErrFolderNotFound
	}
	return id, nil
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		children: map[repository.FolderID][]repository.FolderID{
			repository.Root: {1, 2},
			1:               {3},
		},
		names: map[repository.FolderID]map[string]repository.FolderID{
			repository.Root: {"trips": 1, "work": 2},
			1:               {"rome": 3},
		},
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "init", "start", "import", "simulate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, GetRootCmd().PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "tiercache "+Version)
	assert.Contains(t, buf.String(), "commit: "+Commit)
}

func TestResolveFolder(t *testing.T) {
	tree := newFakeTree()
	ctx := context.Background()

	tests := []struct {
		ref  string
		want repository.FolderID
	}{
		{"root", repository.Root},
		{"ROOT", repository.Root},
		{"", repository.Root},
		{"/", repository.Root},
		{"7", 7},
		{"trips", 1},
		{"trips/rome", 3},
		{"/trips/rome/", 3},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveFolder(ctx, tree, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolveFolder(ctx, tree, "trips/paris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"paris" not found`)

	boom := errors.New("db down")
	tree.err = boom
	_, err = resolveFolder(ctx, tree, "work")
	assert.ErrorIs(t, err, boom)
}

func TestBuildScript(t *testing.T) {
	tree := newFakeTree()
	ctx := context.Background()

	script, err := buildScript(ctx, tree, nil)
	require.NoError(t, err)
	assert.Equal(t, []repository.FolderID{repository.Root, 1, 2, repository.Root}, script)

	script, err = buildScript(ctx, tree, []string{"trips", "trips/rome", "root"})
	require.NoError(t, err)
	assert.Equal(t, []repository.FolderID{1, 3, repository.Root}, script)

	_, err = buildScript(ctx, tree, []string{"nowhere"})
	assert.Error(t, err)
}

func TestSimulationReport_Rows(t *testing.T) {
	snap := engine.Snapshot{
		Cache: pipeline.Stats{
			Bytes:    cache.Stats{Items: 3, Bytes: 2_000_000, Hits: 3, Misses: 1},
			Textures: cache.Stats{Items: 1, Bytes: 1_000_000},
		},
		Worker: engine.WorkerStats{Completed: 4},
	}

	report := simulationReport{
		stepFromSnapshot(1, 7, true, true, snap),
		stepFromSnapshot(2, 7, false, false, snap),
	}

	assert.InDelta(t, 0.75, report[0].HitRate, 1e-9)
	assert.Equal(t, "7", report[0].Folder)

	rows := report.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "7", "3 / 2.0 MB", "1 / 1.0 MB", "75%", "0", "4"}, rows[0])
	assert.Equal(t, "7 (same)", rows[1][1])
	assert.Equal(t, "0 (timeout)", rows[1][5])
	assert.Len(t, report.Headers(), len(rows[0]))
}
