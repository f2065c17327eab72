// Package repository supplies the folder/asset structure the cache engine
// navigates: image paths per folder and parent/child relationships.
//
// The engine treats every read as pure, synchronous, and cache-coherent.
// Two implementations exist:
//   - Memory: an in-process map, used by tests and scripted scenarios
//   - SQLStore: GORM over SQLite or PostgreSQL, populated by ImportTree
package repository

import (
	"errors"
	"strconv"

	"github.com/marmos91/tiercache/pkg/asset"
)

// FolderID identifies a folder. Root (0) is the top of the tree and also
// stands for "no folder".
type FolderID int64

// Root is the root folder.
const Root FolderID = 0

// String returns the decimal id, or "root".
func (id FolderID) String() string {
	if id == Root {
		return "root"
	}
	return strconv.FormatInt(int64(id), 10)
}

// IsRoot reports whether id is the root folder.
func (id FolderID) IsRoot() bool { return id == Root }

var (
	// ErrFolderNotFound is returned when a parent folder does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrDuplicateAsset is returned when an asset path is already registered.
	ErrDuplicateAsset = errors.New("asset already exists")
)

// Repository is the read side consumed by the engine.
type Repository interface {
	// ImagePathsForFolder lists the folder's images in display order.
	ImagePathsForFolder(id FolderID) []asset.Key

	// ParentOf returns the folder's parent. ok is false for Root and for
	// unknown folders; a top-level folder returns (Root, true).
	ParentOf(id FolderID) (parent FolderID, ok bool)

	// SubfolderIDs lists the folder's children in display order.
	SubfolderIDs(id FolderID) []FolderID
}

// Ancestors returns the chain from id up to and including Root, starting
// with id itself. A cycle in the parent links ends the walk.
func Ancestors(repo Repository, id FolderID) []FolderID {
	chain := []FolderID{id}
	seen := map[FolderID]struct{}{id: {}}
	for cur := id; !cur.IsRoot(); {
		parent, ok := repo.ParentOf(cur)
		if !ok {
			parent = Root
		}
		if _, dup := seen[parent]; dup {
			break
		}
		seen[parent] = struct{}{}
		chain = append(chain, parent)
		cur = parent
	}
	return chain
}
