package fs

import (
	"context"
	"os"
	"time"

	"wikifs/internal/logging"
	"wikifs/internal/wikifs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File represents a leaf value: page content or title, an attachment, an
// object property or a class property attribute.
type File struct {
	fs   *WikiFS
	path string
}

// Attr implements the Node interface. Sizes are fetched on every call since
// the value may change remotely.
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	fileLogger.Trace("Getting attributes for file: %q", f.path)

	attr, err := f.fs.ops.Getattr(ctx, f.path)
	if err != nil {
		fileLogger.Debug("Failed to stat file %q: %v", f.path, err)
		return wikifs.ToFuseError(err)
	}

	a.Valid = time.Second
	a.Mode = attr.Mode
	a.Size = attr.Size
	a.Uid = f.fs.uid
	a.Gid = f.fs.gid
	a.BlockSize = 4096
	a.Blocks = (attr.Size + 511) / 512

	fileLogger.Trace("File attributes: mode=%v, size=%d", a.Mode, a.Size)
	return nil
}

// Open implements the NodeOpener interface. Direct IO keeps the kernel from
// caching pages so every read reaches the wiki.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening file %q with flags %v", f.path, req.Flags)
	resp.Flags |= fuse.OpenDirectIO
	return &FileHandle{fs: f.fs, path: f.path}, nil
}

// Setattr implements the NodeSetattrer interface. Only size changes reach the
// backend; other attributes are fixed.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		fileLogger.Debug("Truncating %q to %d", f.path, req.Size)
		if err := f.fs.ops.Truncate(ctx, f.path, safeUint64ToInt64(req.Size)); err != nil {
			return wikifs.ToFuseError(err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

// Fsync implements the NodeFsyncer interface. Writes are pushed as they
// happen, so there is nothing to flush.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

// FileHandle represents an open leaf.
type FileHandle struct {
	fs   *WikiFS
	path string
}

// Read implements the HandleReader interface.
func (fh *FileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from file %q at offset %d", req.Size, fh.path, req.Offset)

	data, err := fh.fs.ops.Read(ctx, fh.path, req.Offset, req.Size)
	if err != nil {
		fileLogger.Debug("Failed to read from file %q: %v", fh.path, err)
		return wikifs.ToFuseError(err)
	}
	resp.Data = data
	return nil
}

// Write implements the HandleWriter interface.
func (fh *FileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to file %q at offset %d", len(req.Data), fh.path, req.Offset)

	n, err := fh.fs.ops.Write(ctx, fh.path, req.Offset, req.Data)
	if err != nil {
		fileLogger.Debug("Failed to write file %q: %v", fh.path, err)
		return wikifs.ToFuseError(err)
	}
	resp.Size = n
	return nil
}

// Symlink is a name.ext link or a class link.
type Symlink struct {
	fs   *WikiFS
	path string
}

// Attr implements the Node interface.
func (s *Symlink) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeSymlink | 0777
	a.Uid = s.fs.uid
	a.Gid = s.fs.gid
	return nil
}

// Readlink implements the NodeReadlinker interface.
func (s *Symlink) Readlink(ctx context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	target, err := s.fs.ops.Readlink(ctx, s.path)
	if err != nil {
		return "", wikifs.ToFuseError(err)
	}
	fileLogger.Trace("Link %q -> %q", s.path, target)
	return target, nil
}
