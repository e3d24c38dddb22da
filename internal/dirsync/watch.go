package dirsync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"wikifs/internal/grammar"
	"wikifs/internal/metrics"
	"wikifs/internal/wikifs"
)

// Watch pushes edits of managed files to the store until ctx is cancelled,
// the watcher fails or the root directory goes away. Directories created
// after Watch starts are not watched.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := e.addWatcherDirs(watcher); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	syncLogger.Info("Watching %s (%d managed files)", e.root, e.Managed().Len())

	for {
		select {
		case <-ctx.Done():
			syncLogger.Debug("Watch cancelled")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil // watcher closed
			}
			if filepath.Clean(event.Name) == e.root && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				syncLogger.Warn("Sync root %s removed, stopping watch", e.root)
				return nil
			}
			e.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil // watcher closed
			}
			syncLogger.Warn("Watcher error: %v", err)
		}
	}
}

// addWatcherDirs adds the root and every directory below it.
func (e *Engine) addWatcherDirs(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

// handleEvent pushes one created or modified file.
func (e *Engine) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(event.Name)
	if !e.Managed().Contains(path) {
		syncLogger.Trace("Ignoring unmanaged %s", path)
		return
	}

	kind, err := e.Push(ctx, path)
	if kind == "" {
		return
	}
	metrics.RecordSyncPush(kind, err)
	if err != nil {
		syncLogger.Debug("Push of %s failed: %v", path, err)
		return
	}
	syncLogger.Info("Pushed %s", path)
}

// Push sends the current content of a mirrored file to the store and saves
// the page. It returns the kind of value pushed, or "" when the file is gone
// or does not address a writable value.
func (e *Engine) Push(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", nil
	}

	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return "", nil
	}
	v, err := grammar.ResolveMirror(e.wiki, filepath.ToSlash(rel))
	if err != nil || v.Ext != "" {
		return "", nil
	}
	switch v.Kind {
	case grammar.PageContent, grammar.PageTitle, grammar.PropertyFile, grammar.AttachmentFile:
	default:
		return "", nil
	}
	kind := v.Kind.String()

	data, err := os.ReadFile(path)
	if err != nil {
		return kind, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := e.store.Open(ctx, e.wiki, v.Reference())
	if err != nil {
		return kind, err
	}
	if err := wikifs.Apply(ctx, doc, v, data); err != nil {
		return kind, err
	}
	return kind, doc.Save(ctx)
}
