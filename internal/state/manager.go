package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"wikifs/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

// Manager handles loading and saving the sync manifest
type Manager struct {
	statePath   string
	backupDir   string
	backupCount int
	mu          sync.RWMutex
}

// NewManager creates a new state manager for the given manifest path.
// It ensures the state directory exists and is writable.
func NewManager(statePath string) (*Manager, error) {
	absPath, err := filepath.Abs(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path %s: %w", statePath, err)
	}
	logger.Debug("Resolved state path: %s", absPath)

	stateDir := filepath.Dir(absPath)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// Verify we can write the manifest before any sync runs
	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create state file %s: %w", absPath, err)
	}
	f.Close()

	backupDir := filepath.Join(stateDir, ".wikifs-backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	return &Manager{
		statePath:   absPath,
		backupDir:   backupDir,
		backupCount: 5,
	}, nil
}

// LoadState loads the manifest from disk. A missing or empty file yields an
// empty manifest.
func (sm *Manager) LoadState() (*SyncState, error) {
	logger.Debug("Loading state from: %s", sm.statePath)
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	data, err := os.ReadFile(sm.statePath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		logger.Info("No previous sync recorded in %s", sm.statePath)
		return &SyncState{Version: CurrentVersion}, nil
	}

	logger.Debug("Parsing existing state file (%d bytes)", len(data))
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", state.Version, CurrentVersion)
	}

	logger.Info("State loaded: %d managed files under %s", len(state.ManagedFiles), state.Root)
	return &state, nil
}

// SaveState writes the manifest through a temporary file and a rename, after
// copying the previous manifest into the backup directory.
func (sm *Manager) SaveState(state *SyncState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state.Version == 0 {
		state.Version = CurrentVersion
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := sm.backup(); err != nil {
		// A lost backup never blocks recording the new sync.
		logger.Warn("Failed to back up %s: %v", sm.statePath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(sm.statePath), ".wikifs-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), sm.statePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	if err := sm.verify(len(state.ManagedFiles)); err != nil {
		return err
	}
	logger.Debug("Saved %d managed files to %s", len(state.ManagedFiles), sm.statePath)
	return nil
}

// verify re-reads the manifest and checks it decodes to the same file count.
func (sm *Manager) verify(managed int) error {
	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		return fmt.Errorf("failed to verify written state: %w", err)
	}
	var check SyncState
	if err := json.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("written state does not parse: %w", err)
	}
	if len(check.ManagedFiles) != managed {
		return fmt.Errorf("written state has %d managed files, expected %d", len(check.ManagedFiles), managed)
	}
	return nil
}

// backup copies the current manifest to a timestamped file and prunes the
// oldest copies beyond backupCount.
func (sm *Manager) backup() error {
	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	// The timestamp sorts lexically in creation order.
	name := "state-" + time.Now().UTC().Format("20060102T150405.000000000") + ".json"
	backupPath := filepath.Join(sm.backupDir, name)
	logger.Trace("Backing up manifest to %s", backupPath)
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return sm.pruneBackups()
}

func (sm *Manager) pruneBackups() error {
	names, err := filepath.Glob(filepath.Join(sm.backupDir, "state-*.json"))
	if err != nil {
		return err
	}
	if len(names) <= sm.backupCount {
		return nil
	}

	sort.Strings(names)
	for _, old := range names[:len(names)-sm.backupCount] {
		logger.Debug("Removing old backup: %s", old)
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", old, err)
		}
	}
	return nil
}

// Path returns the absolute manifest path.
func (sm *Manager) Path() string {
	return sm.statePath
}
