package foldertrack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/tiercache/pkg/repository"
)

func visit(t *Tracker, ids ...repository.FolderID) {
	for _, id := range ids {
		t.RecordVisit(id)
	}
}

func TestTracker_SixVisitsDropsOldest(t *testing.T) {
	tr := New(5)
	visit(tr, 1, 2, 3, 4, 5, 6)

	assert.NotContains(t, tr.Recent(), repository.FolderID(1))
	assert.Equal(t, []repository.FolderID{6, 5, 4, 3, 2}, tr.Recent())
	assert.Equal(t, []repository.FolderID{2, 3, 4, 5, 6}, tr.EvictionOrder())
	assert.Equal(t, repository.FolderID(2), tr.EvictionOrder()[0])
}

func TestTracker_RevisitMovesToFront(t *testing.T) {
	tr := New(5)
	visit(tr, 1, 2, 3, 1)

	assert.Equal(t, []repository.FolderID{1, 3, 2}, tr.Recent())
	assert.Equal(t, 3, tr.Len())
}

func TestTracker_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
}

func TestTracker_FoldersToWarm(t *testing.T) {
	tr := New(5)
	visit(tr, 1, 2, 3, 4, 5)

	assert.Equal(t, []repository.FolderID{4, 3, 2, 1}, tr.FoldersToWarm(5))
	assert.Equal(t, []repository.FolderID{5, 4, 2, 1}, tr.FoldersToWarm(3))
	assert.Equal(t, []repository.FolderID{5, 4, 3, 2}, tr.FoldersToWarm(99))
	assert.Empty(t, New(5).FoldersToWarm(1))
}

func TestTracker_PopOldestSkipsPinned(t *testing.T) {
	tr := New(5)
	visit(tr, 1, 2, 3, 4, 5)

	pinned := func(id repository.FolderID) bool { return id == 1 || id == 5 }
	popped := tr.PopOldest(2, pinned)

	assert.Equal(t, []repository.FolderID{2, 3}, popped)
	assert.Equal(t, []repository.FolderID{5, 4, 1}, tr.Recent())

	assert.Equal(t, []repository.FolderID{4}, tr.PopOldest(3, pinned))
	assert.Empty(t, tr.PopOldest(3, pinned))
	assert.Nil(t, tr.PopOldest(0, nil))
}

func TestTracker_RemoveAndContains(t *testing.T) {
	tr := New(5)
	visit(tr, 1, 2)

	assert.True(t, tr.Contains(1))
	assert.True(t, tr.Remove(1))
	assert.False(t, tr.Remove(1))
	assert.False(t, tr.Contains(1))
}
