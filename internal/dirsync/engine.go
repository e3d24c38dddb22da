// Package dirsync mirrors a directory of page XML files into a plain
// directory tree and pushes local edits of that tree back to a document
// store.
package dirsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"wikifs/internal/document"
	"wikifs/internal/logging"
	"wikifs/internal/metrics"
	"wikifs/internal/wikierr"
)

var syncLogger = logging.GetLogger().WithPrefix("dirsync")

// Config configures an Engine.
type Config struct {
	// Source is the data source directory; pages are read from
	// <Source>/src/main/resources.
	Source string
	// Root is the mirrored directory.
	Root string
	// Wiki names the wiki pushes go to.
	Wiki string
	// Store receives pushes from the watch loop.
	Store document.Store
}

// Engine runs full syncs and the watch loop over one mirrored root.
type Engine struct {
	source string
	root   string
	wiki   string
	store  document.Store

	mu      sync.Mutex
	managed *ManagedFileSet
}

// New creates an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		source:  cfg.Source,
		root:    filepath.Clean(cfg.Root),
		wiki:    cfg.Wiki,
		store:   cfg.Store,
		managed: NewManagedFileSet(),
	}
}

// Root returns the mirrored directory.
func (e *Engine) Root() string {
	return e.root
}

// Source returns the data source directory.
func (e *Engine) Source() string {
	return e.source
}

// Managed returns the managed set of the last sync or restore.
func (e *Engine) Managed() *ManagedFileSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.managed
}

// Restore seeds the managed set from a previous run so Watch can start
// without a full sync.
func (e *Engine) Restore(paths []string) {
	set := NewManagedFileSet()
	for _, p := range paths {
		set.Add(p)
	}
	e.mu.Lock()
	e.managed = set
	e.mu.Unlock()
	metrics.SetManagedFiles(set.Len())
}

// ResourcesDir is where page XML files live inside the data source.
func (e *Engine) ResourcesDir() string {
	return document.MavenStore{Dir: e.source}.ResourcesDir()
}

// Sync materializes every page of the data source under the root. The walk
// stops at the first page that cannot be read or written.
func (e *Engine) Sync(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordSync(time.Since(start)) }()

	set := NewManagedFileSet()
	resources := e.ResourcesDir()
	syncLogger.Info("Syncing %s into %s", resources, e.root)

	pages := 0
	err := filepath.WalkDir(resources, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".xml") {
			return nil
		}
		if err := e.syncPage(ctx, path, set); err != nil {
			return fmt.Errorf("sync %s: %w", path, err)
		}
		pages++
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.managed = set
	e.mu.Unlock()
	metrics.SetManagedFiles(set.Len())

	syncLogger.Info("Synced %d pages, %d files", pages, set.Len())
	return nil
}

// optional turns a missing field into an empty value.
func optional(s string, err error) (string, error) {
	if errors.Is(err, wikierr.ErrMissingField) {
		return "", nil
	}
	return s, err
}

func (e *Engine) syncPage(ctx context.Context, path string, set *ManagedFileSet) error {
	doc, err := document.OpenXMLFile(path)
	if err != nil {
		return err
	}
	ref, err := doc.Reference()
	if err != nil {
		return err
	}
	for _, name := range append(append([]string(nil), ref.Spaces...), ref.Page) {
		if !safeName(name) {
			syncLogger.Warn("Skipping %s: page reference %s has an unusable name %q", path, ref, name)
			return nil
		}
	}
	dir := filepath.Join(e.root, filepath.FromSlash(ref.DirPath()))
	syncLogger.Debug("Page %s -> %s", ref, dir)

	content, err := optional(doc.Content(ctx))
	if err != nil {
		return err
	}
	if err := e.writeFile(filepath.Join(dir, "content"), []byte(content), set); err != nil {
		return err
	}

	title, err := optional(doc.Title(ctx))
	if err != nil {
		return err
	}
	if err := e.writeFile(filepath.Join(dir, "title"), []byte(title), set); err != nil {
		return err
	}

	attachments, err := doc.Attachments(ctx)
	if err != nil {
		return err
	}
	for _, att := range attachments {
		if !safeName(att.Name) {
			syncLogger.Warn("Skipping attachment %q of %s", att.Name, ref)
			continue
		}
		data, err := doc.Attachment(ctx, att.Name)
		if err != nil {
			return err
		}
		if err := e.writeFile(filepath.Join(dir, "attachments", att.Name), data, set); err != nil {
			return err
		}
	}

	objects, err := doc.Objects(ctx)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if !safeName(obj.Class) {
			syncLogger.Warn("Skipping object of class %q on %s", obj.Class, ref)
			continue
		}
		propsDir := filepath.Join(dir, "objects", obj.Class, strconv.Itoa(obj.Number), "properties")
		for _, prop := range obj.Properties {
			if !safeName(prop.Name) || (prop.Ext != "" && !safeName(prop.Name+"."+prop.Ext)) {
				syncLogger.Warn("Skipping property %q of %s on %s", prop.Name, obj.Class, ref)
				continue
			}
			file := filepath.Join(propsDir, prop.Name)
			if err := e.writeFile(file, []byte(prop.Value), set); err != nil {
				return err
			}
			if prop.Ext != "" {
				if err := ensureLink(prop.Name, file+"."+prop.Ext); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// safeName reports whether name can be used as a single path element.
func safeName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsRune(name, '/') &&
		!strings.ContainsRune(name, filepath.Separator) &&
		!strings.ContainsRune(name, 0)
}

// within reports whether path is the root or below it.
func (e *Engine) within(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *Engine) writeFile(path string, data []byte, set *ManagedFileSet) error {
	if !e.within(path) {
		syncLogger.Warn("Refusing to write %s outside %s", path, e.root)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	set.Add(path)
	metrics.RecordSyncFileWritten()
	syncLogger.Trace("Wrote %s (%d bytes)", path, len(data))
	return nil
}

// ensureLink creates link pointing at the relative target unless something
// already exists at link.
func ensureLink(target, link string) error {
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.Symlink(target, link); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}
