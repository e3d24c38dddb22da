package fs

import (
	"context"
	"os"

	"wikifs/internal/logging"
	"wikifs/internal/wikifs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir represents a directory shape of the wiki namespace: the root, a
// listing of wikis, spaces, pages, attachments, objects or class properties.
type Dir struct {
	fs   *WikiFS
	path string
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path)
	a.Mode = os.ModeDir | 0755
	a.Uid = d.fs.uid
	a.Gid = d.fs.gid
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
// The node type follows the attributes the backend reports for the child.
func (d *Dir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	p := childPath(d.path, name)
	dirLogger.Debug("Looking up %q in directory %q", name, d.path)

	attr, err := d.fs.ops.Getattr(ctx, p)
	if err != nil {
		dirLogger.Debug("Path not found: %q: %v", p, err)
		return nil, wikifs.ToFuseError(err)
	}
	return d.fs.node(p, attr), nil
}

func direntType(kind wikifs.NodeKind) fuse.DirentType {
	switch kind {
	case wikifs.KindDir:
		return fuse.DT_Dir
	case wikifs.KindSymlink:
		return fuse.DT_Link
	default:
		return fuse.DT_File
	}
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path)

	children, err := d.fs.ops.Readdir(ctx, d.path)
	if err != nil {
		dirLogger.Debug("Failed to list %q: %v", d.path, err)
		return nil, wikifs.ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(children)+2)
	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	for _, child := range children {
		entries = append(entries, fuse.Dirent{Name: child.Name, Type: direntType(child.Kind)})
	}

	dirLogger.Debug("Found %d entries in directory %q", len(entries), d.path)
	return entries, nil
}
