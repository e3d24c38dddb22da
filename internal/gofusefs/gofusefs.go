// Package gofusefs serves the wiki filesystem over FUSE using go-fuse. It is
// the alternative to the bazil binding in internal/fs and drives the same
// operations backend.
package gofusefs

import (
	"context"
	"fmt"
	"path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"wikifs/internal/logging"
	"wikifs/internal/wikifs"
)

var nodeLogger = logging.GetLogger().WithPrefix("gofuse")

// Options configures the mount.
type Options struct {
	AllowOther bool
	Debug      bool
}

// Node is one path of the namespace. Nodes hold no content.
type Node struct {
	fs.Inode
	ops  wikifs.Operations
	path string
	uid  uint32
	gid  uint32
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeReadlinker = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeReader = (*Node)(nil)
var _ fs.NodeWriter = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)

// NewRoot returns the root node over ops.
func NewRoot(ops wikifs.Operations) *Node {
	uid, gid := wikifs.Owner()
	return &Node{
		ops:  ops,
		path: "/",
		uid:  uid,
		gid:  gid,
	}
}

// modeOf converts a backend attribute into FUSE mode bits.
func modeOf(kind wikifs.NodeKind) uint32 {
	switch kind {
	case wikifs.KindDir:
		return syscall.S_IFDIR | 0755
	case wikifs.KindSymlink:
		return syscall.S_IFLNK | 0777
	default:
		return syscall.S_IFREG | 0644
	}
}

func (n *Node) fill(out *gofuse.Attr, attr wikifs.Attr) {
	out.Mode = modeOf(attr.Kind)
	out.Size = attr.Size
	out.Blocks = (attr.Size + 511) / 512
	out.Uid = n.uid
	out.Gid = n.gid
}

// Getattr returns file attributes.
func (n *Node) Getattr(ctx context.Context, _ fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	attr, err := n.ops.Getattr(ctx, n.path)
	if err != nil {
		return wikifs.Errno(err)
	}
	n.fill(&out.Attr, attr)
	return 0
}

// Lookup finds a child by name.
func (n *Node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := path.Join(n.path, name)
	attr, err := n.ops.Getattr(ctx, p)
	if err != nil {
		nodeLogger.Debug("Lookup %q failed: %v", p, err)
		return nil, wikifs.Errno(err)
	}
	n.fill(&out.Attr, attr)

	child := &Node{ops: n.ops, path: p, uid: n.uid, gid: n.gid}
	stableAttr := fs.StableAttr{Mode: out.Mode & syscall.S_IFMT}
	return n.NewInode(ctx, child, stableAttr), 0
}

// Readdir lists directory contents.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	children, err := n.ops.Readdir(ctx, n.path)
	if err != nil {
		return nil, wikifs.Errno(err)
	}

	entries := make([]gofuse.DirEntry, 0, len(children))
	for _, child := range children {
		entries = append(entries, gofuse.DirEntry{
			Name: child.Name,
			Mode: modeOf(child.Kind) & syscall.S_IFMT,
		})
	}
	return fs.NewListDirStream(entries), 0
}

// Readlink returns a link target.
func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.ops.Readlink(ctx, n.path)
	if err != nil {
		return nil, wikifs.Errno(err)
	}
	return []byte(target), 0
}

// Open bypasses the page cache so reads always reach the wiki.
func (n *Node) Open(_ context.Context, _ uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, gofuse.FOPEN_DIRECT_IO, 0
}

// Read serves a byte range of the value.
func (n *Node) Read(ctx context.Context, _ fs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	data, err := n.ops.Read(ctx, n.path, off, len(dest))
	if err != nil {
		return nil, wikifs.Errno(err)
	}
	return gofuse.ReadResultData(data), 0
}

// Write pushes data at off.
func (n *Node) Write(ctx context.Context, _ fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.ops.Write(ctx, n.path, off, data)
	if err != nil {
		return 0, wikifs.Errno(err)
	}
	return uint32(written), 0
}

// Setattr applies size changes; other attributes are fixed.
func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := n.ops.Truncate(ctx, n.path, int64(size)); err != nil {
			return wikifs.Errno(err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// Server is a mounted go-fuse filesystem.
type Server struct {
	server *gofuse.Server
}

// Mount mounts ops at mountPoint.
func Mount(mountPoint string, ops wikifs.Operations, opts Options) (*Server, error) {
	root := NewRoot(ops)

	// Entries and attributes come from the wiki and may change under us.
	timeout := time.Second
	fsOpts := &fs.Options{
		EntryTimeout: &timeout,
		AttrTimeout:  &timeout,
		MountOptions: gofuse.MountOptions{
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
			FsName:     "wikifs",
			Name:       "wikifs",
		},
		UID: root.uid,
		GID: root.gid,
	}

	server, err := fs.Mount(mountPoint, root, fsOpts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	nodeLogger.Info("Filesystem mounted at %s", mountPoint)
	return &Server{server: server}, nil
}

// Wait blocks until the filesystem is unmounted.
func (s *Server) Wait() error {
	s.server.Wait()
	return nil
}

// Unmount unmounts the filesystem.
func (s *Server) Unmount() error {
	return s.server.Unmount()
}
