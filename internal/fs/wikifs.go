// Package fs serves the wiki filesystem over FUSE using bazil.org/fuse.
package fs

import (
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"wikifs/internal/logging"
	"wikifs/internal/wikifs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// Options configures the mount.
type Options struct {
	AllowOther bool
}

// WikiFS is the bazil filesystem. Every node is a path; all content comes
// from the operations backend on each call.
type WikiFS struct {
	ops        wikifs.Operations
	opts       Options
	conn       *fuse.Conn
	mountpoint string
	uid        uint32 // User ID reported on every node
	gid        uint32 // Group ID reported on every node

	done     chan struct{}
	serveErr error
	mu       sync.Mutex
}

// New creates a filesystem over ops.
func New(ops wikifs.Operations, opts Options) *WikiFS {
	vfsLogger.Info("Creating new wiki filesystem")

	uid, gid := wikifs.Owner()

	return &WikiFS{
		ops:  ops,
		opts: opts,
		uid:  uid,
		gid:  gid,
		done: make(chan struct{}),
	}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (w *WikiFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: w, path: "/"}, nil
}

// node builds the node type matching attr for p.
func (w *WikiFS) node(p string, attr wikifs.Attr) fusefs.Node {
	switch attr.Kind {
	case wikifs.KindDir:
		return &Dir{fs: w, path: p}
	case wikifs.KindSymlink:
		return &Symlink{fs: w, path: p}
	default:
		return &File{fs: w, path: p}
	}
}

func childPath(parent, name string) string {
	return path.Join(parent, name)
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem at mountPoint and serves it in the background.
func (w *WikiFS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting wiki filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("UID: %d, GID: %d", w.uid, w.gid)

	mountOpts := []fuse.MountOption{
		fuse.FSName("wikifs"),
		fuse.Subtype("wikifs"),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
		fuse.AllowNonEmptyMount(),
	}
	if w.opts.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	w.conn = c
	w.mountpoint = mountPoint

	go func() {
		defer close(w.done)
		err := fusefs.Serve(c, w)
		if err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
		w.mu.Lock()
		w.serveErr = err
		w.mu.Unlock()
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (w *WikiFS) Wait() error {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
	}
	return w.serveErr
}

// Unmount cleanly unmounts the filesystem.
func (w *WikiFS) Unmount() error {
	if w.conn == nil {
		return nil
	}
	vfsLogger.Info("Unmounting filesystem from: %s", w.mountpoint)
	err := fuse.Unmount(w.mountpoint)
	if err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
	} else {
		vfsLogger.Info("Unmount completed successfully")
	}
	return err
}
