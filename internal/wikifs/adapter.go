// Package wikifs translates filesystem operations on virtual paths into
// listing and get/set calls against the wiki. It is independent of the FUSE
// binding that drives it.
package wikifs

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"syscall"
	"time"
	"unicode"

	"wikifs/internal/document"
	"wikifs/internal/grammar"
	"wikifs/internal/logging"
	"wikifs/internal/metrics"
	"wikifs/internal/wikierr"
)

var adapterLogger = logging.GetLogger().WithPrefix("adapter")

// NodeKind is the file type of a virtual entry.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDir
	KindSymlink
)

// Attr describes a virtual entry.
type Attr struct {
	Kind NodeKind
	Mode os.FileMode
	Size uint64
}

// DirEntry is one directory entry.
type DirEntry struct {
	Name string
	Kind NodeKind
}

// Operations is what a FUSE binding needs from the filesystem.
type Operations interface {
	Getattr(ctx context.Context, path string) (Attr, error)
	Readdir(ctx context.Context, path string) ([]DirEntry, error)
	Readlink(ctx context.Context, path string) (string, error)
	Read(ctx context.Context, path string, offset int64, size int) ([]byte, error)
	// Write returns the number of bytes accepted.
	Write(ctx context.Context, path string, offset int64, data []byte) (int, error)
	Truncate(ctx context.Context, path string, size int64) error
}

var _ Operations = (*Adapter)(nil)

// Options configures an Adapter.
type Options struct {
	Store  document.Store
	Lister grammar.Lister
	// StrictWrites returns EIO for writes the store rejects instead of
	// dropping them.
	StrictWrites bool
}

// Adapter implements Operations over a document store and a lister.
// It holds no per-path state; every call goes to the backend.
type Adapter struct {
	store        document.Store
	lister       grammar.Lister
	strictWrites bool
}

// New creates an Adapter.
func New(opts Options) *Adapter {
	return &Adapter{
		store:        opts.Store,
		lister:       opts.Lister,
		strictWrites: opts.StrictWrites,
	}
}

func dirAttr() Attr {
	return Attr{Kind: KindDir, Mode: os.ModeDir | 0755}
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordFSOp(op, time.Since(start), *err)
}

func resolve(op, p string) (grammar.VirtualPath, error) {
	v, err := grammar.Resolve(p)
	if err != nil {
		return grammar.VirtualPath{}, wikierr.Wrap(op, p, err)
	}
	return v, nil
}

// Getattr reports directories and symlinks from the path shape alone and
// sizes leaves by fetching their value.
func (a *Adapter) Getattr(ctx context.Context, p string) (attr Attr, err error) {
	defer observe(OpGetattr, time.Now(), &err)
	adapterLogger.Trace("getattr %s", p)

	v, err := resolve(OpGetattr, p)
	if err != nil {
		return Attr{}, err
	}

	switch {
	case v.Kind == grammar.ClassPropertyAttributes:
		if _, err := a.lister.ClassPropertyAttributes(ctx, v.Wiki, v.Reference(), v.Name); err != nil {
			return Attr{}, wikierr.Wrap(OpGetattr, p, err)
		}
		return dirAttr(), nil
	case v.IsDir():
		return dirAttr(), nil
	case v.IsSymlink():
		return Attr{Kind: KindSymlink, Mode: os.ModeSymlink | 0644}, nil
	case v.Kind == grammar.AttachmentFile:
		atts, err := a.lister.Attachments(ctx, v.Wiki, v.Reference())
		if err != nil {
			return Attr{}, wikierr.Wrap(OpGetattr, p, err)
		}
		for _, att := range atts {
			if att.Name == v.Name {
				return Attr{Kind: KindFile, Mode: 0644, Size: uint64(max(att.Size, 0))}, nil
			}
		}
		return Attr{}, wikierr.Wrap(OpGetattr, p, wikierr.Missing("attachment %s", v.Name))
	}

	value, err := a.value(ctx, v)
	if err != nil {
		return Attr{}, wikierr.Wrap(OpGetattr, p, err)
	}
	return Attr{Kind: KindFile, Mode: 0644, Size: uint64(len(value))}, nil
}

// Readdir lists a directory shape. Entry kinds come from the grammar so
// listing never costs more than the listing call itself.
func (a *Adapter) Readdir(ctx context.Context, p string) (entries []DirEntry, err error) {
	defer observe(OpReadDir, time.Now(), &err)
	adapterLogger.Debug("readdir %s", p)

	v, err := resolve(OpReadDir, p)
	if err != nil {
		return nil, err
	}
	if !v.IsDir() {
		return nil, wikierr.Wrap(OpReadDir, p, fmt.Errorf("%w: not a directory", wikierr.ErrUnresolvedPath))
	}

	names, err := grammar.List(ctx, v, a.lister)
	if err != nil {
		return nil, wikierr.Wrap(OpReadDir, p, err)
	}

	entries = make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Kind: entryKind(path.Join(grammar.Clean(p), name))})
	}
	return entries, nil
}

func entryKind(p string) NodeKind {
	v, err := grammar.Resolve(p)
	switch {
	case err != nil:
		return KindFile
	case v.IsDir():
		return KindDir
	case v.IsSymlink():
		return KindSymlink
	}
	return KindFile
}

// Readlink computes a link target from the path alone.
func (a *Adapter) Readlink(_ context.Context, p string) (target string, err error) {
	defer observe(OpReadlink, time.Now(), &err)

	v, err := resolve(OpReadlink, p)
	if err != nil {
		return "", err
	}
	if !v.IsSymlink() {
		return "", wikierr.Wrap(OpReadlink, p, fmt.Errorf("%w: not a link", wikierr.ErrUnresolvedPath))
	}

	switch v.Kind {
	case grammar.ClassLink:
		target, err := grammar.ClassLinkTarget(v.Class)
		if err != nil {
			return "", wikierr.Wrap(OpReadlink, p, err)
		}
		return target, nil
	case grammar.PageContent:
		return "content", nil
	case grammar.ClassPropertyField:
		return v.Field, nil
	default:
		return v.Name, nil
	}
}

// Read returns the [offset, offset+size) slice of the whole value.
func (a *Adapter) Read(ctx context.Context, p string, offset int64, size int) (data []byte, err error) {
	defer observe(OpRead, time.Now(), &err)
	adapterLogger.Trace("read %s offset=%d size=%d", p, offset, size)

	v, err := resolve(OpRead, p)
	if err != nil {
		return nil, err
	}
	value, err := a.value(ctx, v)
	if err != nil {
		return nil, wikierr.Wrap(OpRead, p, err)
	}

	if offset < 0 || offset >= int64(len(value)) || size <= 0 {
		return []byte{}, nil
	}
	end := offset + int64(size)
	if end > int64(len(value)) {
		end = int64(len(value))
	}
	return value[offset:end], nil
}

// Write cuts the current value at offset, appends data and pushes the result.
func (a *Adapter) Write(ctx context.Context, p string, offset int64, data []byte) (n int, err error) {
	defer observe(OpWrite, time.Now(), &err)
	adapterLogger.Debug("write %s offset=%d size=%d", p, offset, len(data))

	v, err := resolve(OpWrite, p)
	if err != nil {
		return 0, err
	}
	current, err := a.value(ctx, v)
	if err != nil {
		return 0, wikierr.Wrap(OpWrite, p, err)
	}

	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(current))+maxWriteGap {
		return 0, wikierr.Wrap(OpWrite, p, fmt.Errorf("%w: offset %d is %d bytes past the end", syscall.EFBIG, offset, offset-int64(len(current))))
	}
	next := make([]byte, offset, offset+int64(len(data)))
	copy(next, current)
	next = append(next, data...)

	if err := a.put(ctx, v, next); err != nil {
		return 0, a.dropped(OpWrite, p, err)
	}
	return len(data), nil
}

// maxWriteGap bounds how far past the end of a value a write may start. The
// gap is zero-filled and pushed to the store with the rest of the value.
const maxWriteGap = 1 << 20

// Truncate shortens a value. Growing is a no-op.
func (a *Adapter) Truncate(ctx context.Context, p string, size int64) (err error) {
	defer observe(OpTruncate, time.Now(), &err)
	adapterLogger.Debug("truncate %s size=%d", p, size)

	v, err := resolve(OpTruncate, p)
	if err != nil {
		return err
	}
	current, err := a.value(ctx, v)
	if err != nil {
		return wikierr.Wrap(OpTruncate, p, err)
	}
	if size < 0 || size >= int64(len(current)) {
		return nil
	}

	if err := a.put(ctx, v, current[:size]); err != nil {
		return a.dropped(OpTruncate, p, err)
	}
	return nil
}

// dropped handles a store rejection of a write: it is logged and swallowed
// unless strict writes are enabled.
func (a *Adapter) dropped(op, p string, err error) error {
	metrics.RecordDroppedWrite("fuse")
	if wikierr.KindOf(err) == wikierr.KindReadOnly {
		return wikierr.Wrap(op, p, err)
	}
	if a.strictWrites {
		return wikierr.Wrap(op, p, fmt.Errorf("%w: %w", syscall.EIO, err))
	}
	adapterLogger.Debug("Dropped %s on %s: %v", op, p, err)
	return nil
}

// value fetches the bytes a leaf shape stands for.
func (a *Adapter) value(ctx context.Context, v grammar.VirtualPath) ([]byte, error) {
	if v.Kind == grammar.ClassPropertyField {
		attrs, err := a.lister.ClassPropertyAttributes(ctx, v.Wiki, v.Reference(), v.Name)
		if err != nil {
			return nil, err
		}
		for _, attr := range attrs {
			if attr.Name == v.Field {
				return []byte(attr.Value), nil
			}
		}
		return nil, wikierr.Missing("attribute %s of class property %s", v.Field, v.Name)
	}

	switch v.Kind {
	case grammar.PageContent, grammar.PageTitle, grammar.PropertyFile, grammar.AttachmentFile:
	default:
		return nil, fmt.Errorf("%w: %s has no value", wikierr.ErrUnresolvedPath, v.Kind)
	}

	doc, err := a.store.Open(ctx, v.Wiki, v.Reference())
	if err != nil {
		return nil, err
	}

	var s string
	switch v.Kind {
	case grammar.PageContent:
		s, err = doc.Content(ctx)
	case grammar.PageTitle:
		s, err = doc.Title(ctx)
	case grammar.PropertyFile:
		s, err = doc.Value(ctx, v.Class, v.Number, v.Name)
	case grammar.AttachmentFile:
		return doc.Attachment(ctx, v.Name)
	}
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// put stores value at a leaf shape and saves the page.
func (a *Adapter) put(ctx context.Context, v grammar.VirtualPath, value []byte) error {
	if v.Kind == grammar.ClassPropertyField {
		return wikierr.ErrReadOnly
	}

	doc, err := a.store.Open(ctx, v.Wiki, v.Reference())
	if err != nil {
		return err
	}
	if err := Apply(ctx, doc, v, value); err != nil {
		return err
	}
	return doc.Save(ctx)
}

// Apply sets value on doc at the leaf v addresses, without saving. Titles
// lose trailing whitespace so an editor's final newline does not end up in
// the page title.
func Apply(ctx context.Context, doc document.Document, v grammar.VirtualPath, value []byte) error {
	switch v.Kind {
	case grammar.PageContent:
		return doc.SetContent(ctx, string(value))
	case grammar.PageTitle:
		return doc.SetTitle(ctx, strings.TrimRightFunc(string(value), unicode.IsSpace))
	case grammar.PropertyFile:
		return doc.SetValue(ctx, v.Class, v.Number, v.Name, string(value))
	case grammar.AttachmentFile:
		return doc.SetAttachment(ctx, v.Name, value)
	}
	return fmt.Errorf("%w: %s cannot be written", wikierr.ErrReadOnly, v.Kind)
}
