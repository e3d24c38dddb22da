package fs

import (
	"bazil.org/fuse/fs"
)

// Directory represents a directory in the wiki filesystem
type Directory interface {
	fs.Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
}

// FileInterface represents a leaf value in the wiki filesystem
type FileInterface interface {
	fs.Node
	fs.NodeSetattrer
	fs.NodeOpener
	fs.NodeFsyncer
}

// FileHandleInterface represents an open file handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
}

// LinkInterface represents a symbolic link
type LinkInterface interface {
	fs.Node
	fs.NodeReadlinker
}

var (
	_ fs.FS               = (*WikiFS)(nil)
	_ Directory           = (*Dir)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
	_ LinkInterface       = (*Symlink)(nil)
)
