package repository

import (
	"slices"
	"sync"

	"github.com/marmos91/tiercache/pkg/asset"
)

type memFolder struct {
	parent   FolderID
	images   []asset.Key
	children []FolderID
}

// Memory is an in-process Repository. The zero value is not usable; use
// NewMemory.
type Memory struct {
	mu      sync.RWMutex
	folders map[FolderID]*memFolder
}

// NewMemory returns a repository containing only Root.
func NewMemory() *Memory {
	return &Memory{folders: map[FolderID]*memFolder{Root: {}}}
}

// AddFolder registers id under parent. Re-adding an existing folder moves it.
func (m *Memory) AddFolder(id, parent FolderID) error {
	if id.IsRoot() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.folders[parent]
	if !ok {
		return ErrFolderNotFound
	}

	if f, exists := m.folders[id]; exists {
		if old := m.folders[f.parent]; old != nil {
			old.children = slices.DeleteFunc(old.children, func(c FolderID) bool { return c == id })
		}
		f.parent = parent
	} else {
		m.folders[id] = &memFolder{parent: parent}
	}
	p.children = append(p.children, id)
	return nil
}

// AddImages appends keys to the folder, creating it under Root if unknown.
func (m *Memory) AddImages(id FolderID, keys ...asset.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.folders[id]
	if !ok {
		f = &memFolder{parent: Root}
		m.folders[id] = f
		m.folders[Root].children = append(m.folders[Root].children, id)
	}
	f.images = append(f.images, keys...)
}

// ImagePathsForFolder implements Repository.
func (m *Memory) ImagePathsForFolder(id FolderID) []asset.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.folders[id]; ok {
		return slices.Clone(f.images)
	}
	return nil
}

// ParentOf implements Repository.
func (m *Memory) ParentOf(id FolderID) (FolderID, bool) {
	if id.IsRoot() {
		return Root, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.folders[id]; ok {
		return f.parent, true
	}
	return Root, false
}

// SubfolderIDs implements Repository.
func (m *Memory) SubfolderIDs(id FolderID) []FolderID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.folders[id]; ok {
		return slices.Clone(f.children)
	}
	return nil
}
