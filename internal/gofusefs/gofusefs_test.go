package gofusefs

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"wikifs/internal/wikierr"
	"wikifs/internal/wikifs"
)

type stubOps struct {
	value     []byte
	truncated int64
	writeErr  error
}

func (s *stubOps) Getattr(_ context.Context, p string) (wikifs.Attr, error) {
	switch p {
	case "/":
		return wikifs.Attr{Kind: wikifs.KindDir, Mode: os.ModeDir | 0755}, nil
	case "/value":
		return wikifs.Attr{Kind: wikifs.KindFile, Mode: 0644, Size: uint64(len(s.value))}, nil
	}
	return wikifs.Attr{}, wikierr.Unresolved(p)
}

func (s *stubOps) Readdir(context.Context, string) ([]wikifs.DirEntry, error) {
	return []wikifs.DirEntry{
		{Name: "value", Kind: wikifs.KindFile},
		{Name: "value.txt", Kind: wikifs.KindSymlink},
		{Name: "sub", Kind: wikifs.KindDir},
	}, nil
}

func (s *stubOps) Readlink(context.Context, string) (string, error) { return "value", nil }

func (s *stubOps) Read(_ context.Context, _ string, off int64, size int) ([]byte, error) {
	end := min(off+int64(size), int64(len(s.value)))
	if off >= end {
		return nil, nil
	}
	return s.value[off:end], nil
}

func (s *stubOps) Write(_ context.Context, _ string, _ int64, data []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.value = append(s.value, data...)
	return len(data), nil
}

func (s *stubOps) Truncate(_ context.Context, _ string, size int64) error {
	s.truncated = size
	return nil
}

func TestModeOf(t *testing.T) {
	tests := []struct {
		kind wikifs.NodeKind
		want uint32
	}{
		{wikifs.KindDir, syscall.S_IFDIR | 0755},
		{wikifs.KindFile, syscall.S_IFREG | 0644},
		{wikifs.KindSymlink, syscall.S_IFLNK | 0777},
	}
	for _, tt := range tests {
		if got := modeOf(tt.kind); got != tt.want {
			t.Errorf("modeOf(%d): expected %o, got %o", tt.kind, tt.want, got)
		}
	}
}

func TestNodeOperations(t *testing.T) {
	ctx := context.Background()
	ops := &stubOps{value: []byte("hello")}
	root := NewRoot(ops)
	leaf := &Node{ops: ops, path: "/value", uid: 1, gid: 2}

	out := &gofuse.AttrOut{}
	if errno := leaf.Getattr(ctx, nil, out); errno != 0 {
		t.Fatalf("Getattr failed: %v", errno)
	}
	if out.Size != 5 || out.Mode != syscall.S_IFREG|0644 || out.Uid != 1 || out.Gid != 2 {
		t.Errorf("Unexpected attributes %+v", out.Attr)
	}

	missing := &Node{ops: ops, path: "/gone"}
	if errno := missing.Getattr(ctx, nil, &gofuse.AttrOut{}); errno != syscall.ENOENT {
		t.Errorf("Expected ENOENT, got %v", errno)
	}

	stream, errno := root.Readdir(ctx)
	if errno != 0 {
		t.Fatalf("Readdir failed: %v", errno)
	}
	var names []string
	for stream.HasNext() {
		e, errno := stream.Next()
		if errno != 0 {
			t.Fatalf("Next failed: %v", errno)
		}
		names = append(names, e.Name)
		if e.Name == "value.txt" && e.Mode != syscall.S_IFLNK {
			t.Errorf("Expected link mode for value.txt, got %o", e.Mode)
		}
	}
	if len(names) != 3 {
		t.Errorf("Expected 3 entries, got %v", names)
	}

	_, flags, errno := leaf.Open(ctx, 0)
	if errno != 0 || flags&gofuse.FOPEN_DIRECT_IO == 0 {
		t.Errorf("Expected direct IO open, got flags %x errno %v", flags, errno)
	}

	res, errno := leaf.Read(ctx, nil, make([]byte, 3), 1)
	if errno != 0 {
		t.Fatalf("Read failed: %v", errno)
	}
	data, _ := res.Bytes(nil)
	if string(data) != "ell" {
		t.Errorf("Expected %q, got %q", "ell", data)
	}

	written, errno := leaf.Write(ctx, nil, []byte("!"), 5)
	if errno != 0 || written != 1 {
		t.Errorf("Expected 1 byte written, got %d (%v)", written, errno)
	}

	ops.writeErr = wikierr.ErrReadOnly
	if _, errno := leaf.Write(ctx, nil, []byte("x"), 0); errno != syscall.EROFS {
		t.Errorf("Expected EROFS, got %v", errno)
	}
	ops.writeErr = errors.New("boom")
	if _, errno := leaf.Write(ctx, nil, []byte("x"), 0); errno != syscall.EIO {
		t.Errorf("Expected EIO, got %v", errno)
	}

	in := &gofuse.SetAttrIn{SetAttrInCommon: gofuse.SetAttrInCommon{Valid: gofuse.FATTR_SIZE, Size: 2}}
	if errno := leaf.Setattr(ctx, nil, in, &gofuse.AttrOut{}); errno != 0 {
		t.Fatalf("Setattr failed: %v", errno)
	}
	if ops.truncated != 2 {
		t.Errorf("Expected truncate to 2, got %d", ops.truncated)
	}

	target, errno := (&Node{ops: ops, path: "/value.txt"}).Readlink(ctx)
	if errno != 0 || string(target) != "value" {
		t.Errorf("Expected link to value, got %q (%v)", target, errno)
	}
}

func TestRootOwnerFromEnvironment(t *testing.T) {
	t.Setenv("PUID", "1234")
	t.Setenv("PGID", "5678")

	root := NewRoot(&stubOps{})
	if root.uid != 1234 || root.gid != 5678 {
		t.Errorf("Expected 1234:5678, got %d:%d", root.uid, root.gid)
	}
}
