package dirsync

import (
	"sort"
	"sync"
)

// ManagedFileSet records the files a full sync wrote. Only those files are
// pushed back when they change, so editor swap files and other strays never
// reach the wiki. Entries are never removed.
type ManagedFileSet struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewManagedFileSet returns an empty set.
func NewManagedFileSet() *ManagedFileSet {
	return &ManagedFileSet{paths: make(map[string]struct{})}
}

// Add records path.
func (m *ManagedFileSet) Add(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[path] = struct{}{}
}

// Contains reports whether path was written by a sync.
func (m *ManagedFileSet) Contains(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[path]
	return ok
}

// Len returns the number of managed files.
func (m *ManagedFileSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paths)
}

// Paths returns the managed files in sorted order.
func (m *ManagedFileSet) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
