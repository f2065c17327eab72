package prefetch

import (
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/repository"
)

// ChildPlan is the horizon split for one child folder.
type ChildPlan struct {
	Folder    repository.FolderID
	Full      []asset.Key // bytes and texture
	BytesOnly []asset.Key // Tier 2 only, no decode
}

// Plan is the full set of loads scheduled for one folder change.
type Plan struct {
	Folder repository.FolderID

	// Current holds the folder's own assets (step 1).
	Current []asset.Key

	// Parent and ParentAssets describe step 2. HasParent is false at Root.
	Parent       repository.FolderID
	HasParent    bool
	ParentAssets []asset.Key

	// Children is the horizon preview of the first child folders (step 3).
	Children []ChildPlan
}

// FullFidelity returns every key the plan decodes, in scheduling order.
func (p Plan) FullFidelity() []asset.Key {
	out := make([]asset.Key, 0, len(p.Current)+len(p.ParentAssets))
	out = append(out, p.Current...)
	out = append(out, p.ParentAssets...)
	for _, c := range p.Children {
		out = append(out, c.Full...)
	}
	return out
}

// BytesOnly returns every key the plan only loads into Tier 2.
func (p Plan) BytesOnly() []asset.Key {
	var out []asset.Key
	for _, c := range p.Children {
		out = append(out, c.BytesOnly...)
	}
	return out
}

// ChildHorizon returns the full-fidelity keys of every previewed child.
func (p Plan) ChildHorizon() []asset.Key {
	var out []asset.Key
	for _, c := range p.Children {
		out = append(out, c.Full...)
	}
	return out
}

// splitHorizon returns the first horizon keys and the rest.
func splitHorizon(keys []asset.Key, horizon int) (full, bytesOnly []asset.Key) {
	if len(keys) <= horizon {
		return keys, nil
	}
	return keys[:horizon], keys[horizon:]
}

// BuildPlan computes the plan for a change to folder. It only reads repo.
func BuildPlan(repo repository.Repository, folder repository.FolderID, cfg Config) Plan {
	cfg.ApplyDefaults()

	p := Plan{
		Folder:  folder,
		Current: repo.ImagePathsForFolder(folder),
	}

	if parent, ok := repo.ParentOf(folder); ok {
		p.Parent = parent
		p.HasParent = true
		p.ParentAssets = repo.ImagePathsForFolder(parent)
	}

	children := repo.SubfolderIDs(folder)
	if len(children) > cfg.MaxChildren {
		children = children[:cfg.MaxChildren]
	}
	for _, child := range children {
		full, bytesOnly := splitHorizon(repo.ImagePathsForFolder(child), cfg.Horizon)
		p.Children = append(p.Children, ChildPlan{Folder: child, Full: full, BytesOnly: bytesOnly})
	}

	return p
}
