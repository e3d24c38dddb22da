package dirsync

import (
	"path/filepath"

	"github.com/disiqueira/gotree/v3"
)

type fileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func (t fileTree) getDir(dirPath string) gotree.Tree {
	if dirPath == "." {
		return t.tree
	}
	dir := t.dirs[dirPath]
	if dir == nil {
		dir = t.getDir(filepath.Dir(dirPath)).Add(filepath.Base(dirPath))
		t.dirs[dirPath] = dir
	}
	return dir
}

// RenderTree draws the managed files of the last sync relative to the root.
func (e *Engine) RenderTree() string {
	t := fileTree{tree: gotree.New(e.root), dirs: make(map[string]gotree.Tree)}
	for _, p := range e.Managed().Paths() {
		rel, err := filepath.Rel(e.root, p)
		if err != nil {
			continue
		}
		t.getDir(filepath.Dir(rel)).Add(filepath.Base(rel))
	}
	return t.tree.Print()
}
