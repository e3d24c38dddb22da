// Package state persists the manifest of the last full sync.
package state

import "time"

// CurrentVersion is the manifest format written by this build.
const CurrentVersion = 1

// SyncState records what the last full sync produced
type SyncState struct {
	// Mirrored directory the files were written to
	Root string `json:"root"`

	// Data source directory the pages were read from
	Source string `json:"source"`

	// Wiki pushes were addressed to
	Wiki string `json:"wiki"`

	// Absolute paths of every file the sync wrote
	ManagedFiles []string `json:"managed_files"`

	SyncedAt time.Time `json:"synced_at"`

	// Version for future compatibility
	Version int `json:"version"`
}

// Empty reports whether no sync has been recorded.
func (s *SyncState) Empty() bool {
	return s == nil || s.Root == "" || len(s.ManagedFiles) == 0
}
