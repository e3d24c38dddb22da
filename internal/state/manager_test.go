package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingState(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "nested", "state.json"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	s, err := m.LoadState()
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if !s.Empty() {
		t.Errorf("Expected an empty manifest, got %+v", s)
	}
	if s.Version != CurrentVersion {
		t.Errorf("Expected version %d, got %d", CurrentVersion, s.Version)
	}
}

func TestSaveAndLoadState(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	want := &SyncState{
		Root:         "/out",
		Source:       "/src",
		Wiki:         "xwiki",
		ManagedFiles: []string{"/out/spaces/Main/pages/WebHome/content"},
		SyncedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := m.SaveState(want); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	got, err := m.LoadState()
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if got.Empty() {
		t.Error("Expected a recorded sync")
	}
}

func TestBackupRotation(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for i := 0; i < 8; i++ {
		s := &SyncState{Root: "/out", ManagedFiles: []string{filepath.Join("/out", string(rune('a'+i)))}}
		if err := m.SaveState(s); err != nil {
			t.Fatalf("SaveState %d failed: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := os.ReadDir(filepath.Join(dir, ".wikifs-backups"))
	if err != nil {
		t.Fatalf("Failed to read backups: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 backups, got %d", len(entries))
	}
}

func TestRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"root":"/out","version":99}`), 0600); err != nil {
		t.Fatalf("Failed to write state: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := m.LoadState(); err == nil {
		t.Error("Expected error loading a newer manifest")
	}
}
