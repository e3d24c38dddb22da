package fs

import (
	"context"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"

	"wikifs/internal/wikierr"
	"wikifs/internal/wikifs"

	"bazil.org/fuse"
)

// memOps serves a fixed tree of paths from memory.
type memOps struct {
	mu    sync.Mutex
	dirs  map[string][]wikifs.DirEntry
	files map[string][]byte
	links map[string]string
}

func (m *memOps) Getattr(_ context.Context, p string) (wikifs.Attr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dirs[p]; ok {
		return wikifs.Attr{Kind: wikifs.KindDir, Mode: os.ModeDir | 0755}, nil
	}
	if _, ok := m.links[p]; ok {
		return wikifs.Attr{Kind: wikifs.KindSymlink, Mode: os.ModeSymlink | 0644}, nil
	}
	if data, ok := m.files[p]; ok {
		return wikifs.Attr{Kind: wikifs.KindFile, Mode: 0644, Size: uint64(len(data))}, nil
	}
	return wikifs.Attr{}, wikierr.Unresolved(p)
}

func (m *memOps) Readdir(_ context.Context, p string) ([]wikifs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.dirs[p]
	if !ok {
		return nil, wikierr.Unresolved(p)
	}
	return entries, nil
}

func (m *memOps) Readlink(_ context.Context, p string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.links[p]
	if !ok {
		return "", wikierr.Unresolved(p)
	}
	return target, nil
}

func (m *memOps) Read(_ context.Context, p string, offset int64, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[p]
	if !ok {
		return nil, wikierr.Unresolved(p)
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := min(offset+int64(size), int64(len(data)))
	return data[offset:end], nil
}

func (m *memOps) Write(_ context.Context, p string, offset int64, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.files[p]
	if !ok {
		return 0, wikierr.Unresolved(p)
	}
	if strings.HasSuffix(p, "/readonly") {
		return 0, wikierr.ErrReadOnly
	}
	next := make([]byte, offset)
	copy(next, current)
	m.files[p] = append(next, data...)
	return len(data), nil
}

func (m *memOps) Truncate(_ context.Context, p string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.files[p]
	if !ok {
		return wikierr.Unresolved(p)
	}
	if size < int64(len(current)) {
		m.files[p] = current[:size]
	}
	return nil
}

func setupTestFS(t *testing.T) (*WikiFS, *memOps) {
	t.Helper()
	ops := &memOps{
		dirs: map[string][]wikifs.DirEntry{
			"/":      {{Name: "wikis", Kind: wikifs.KindDir}},
			"/wikis": {{Name: "xwiki", Kind: wikifs.KindDir}},
			"/wikis/xwiki": {
				{Name: "content", Kind: wikifs.KindFile},
				{Name: "content.xwiki", Kind: wikifs.KindSymlink},
				{Name: "readonly", Kind: wikifs.KindFile},
			},
		},
		files: map[string][]byte{
			"/wikis/xwiki/content":  []byte("Hello wiki"),
			"/wikis/xwiki/readonly": []byte("fixed"),
		},
		links: map[string]string{
			"/wikis/xwiki/content.xwiki": "content",
		},
	}
	return New(ops, Options{}), ops
}

func TestDirOperations(t *testing.T) {
	vfs, _ := setupTestFS(t)
	ctx := context.Background()

	t.Run("RootDirectory", func(t *testing.T) {
		root, err := vfs.Root()
		if err != nil {
			t.Fatalf("Failed to get root: %v", err)
		}

		attr := &fuse.Attr{}
		if err := root.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get root attributes: %v", err)
		}
		if !attr.Mode.IsDir() {
			t.Error("Root should be a directory")
		}
		if attr.Uid != vfs.uid || attr.Gid != vfs.gid {
			t.Errorf("Expected owner %d:%d, got %d:%d", vfs.uid, vfs.gid, attr.Uid, attr.Gid)
		}
	})

	t.Run("ReadDirAll", func(t *testing.T) {
		dir := &Dir{fs: vfs, path: "/wikis/xwiki"}
		entries, err := dir.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("ReadDirAll failed: %v", err)
		}

		want := map[string]fuse.DirentType{
			".":             fuse.DT_Dir,
			"..":            fuse.DT_Dir,
			"content":       fuse.DT_File,
			"content.xwiki": fuse.DT_Link,
			"readonly":      fuse.DT_File,
		}
		if len(entries) != len(want) {
			t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
		}
		for _, e := range entries {
			if typ, ok := want[e.Name]; !ok || typ != e.Type {
				t.Errorf("Unexpected entry %q of type %v", e.Name, e.Type)
			}
		}
	})

	t.Run("LookupNodeTypes", func(t *testing.T) {
		root, _ := vfs.Root()
		wikis, err := root.(*Dir).Lookup(ctx, "wikis")
		if err != nil {
			t.Fatalf("Failed to lookup wikis: %v", err)
		}
		xwiki, err := wikis.(*Dir).Lookup(ctx, "xwiki")
		if err != nil {
			t.Fatalf("Failed to lookup xwiki: %v", err)
		}
		dir, ok := xwiki.(*Dir)
		if !ok {
			t.Fatalf("Expected *Dir, got %T", xwiki)
		}

		file, err := dir.Lookup(ctx, "content")
		if err != nil {
			t.Fatalf("Failed to lookup content: %v", err)
		}
		if _, ok := file.(*File); !ok {
			t.Errorf("Expected *File, got %T", file)
		}

		link, err := dir.Lookup(ctx, "content.xwiki")
		if err != nil {
			t.Fatalf("Failed to lookup link: %v", err)
		}
		if _, ok := link.(*Symlink); !ok {
			t.Errorf("Expected *Symlink, got %T", link)
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		dir := &Dir{fs: vfs, path: "/wikis"}
		if _, err := dir.Lookup(ctx, "nope"); err != syscall.ENOENT {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})

	t.Run("ReadDirAllMissing", func(t *testing.T) {
		dir := &Dir{fs: vfs, path: "/gone"}
		if _, err := dir.ReadDirAll(ctx); err != syscall.ENOENT {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})
}

func TestOwnerFromEnvironment(t *testing.T) {
	t.Setenv("PUID", "1234")
	t.Setenv("PGID", "5678")

	vfs := New(&memOps{}, Options{})
	if vfs.uid != 1234 || vfs.gid != 5678 {
		t.Errorf("Expected 1234:5678, got %d:%d", vfs.uid, vfs.gid)
	}
}
