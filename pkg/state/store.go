package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/openresearch/deepsearch/pkg/domain"
)

// Store persists research state checkpoints. Save is called after every
// completed state-machine transition; Load restores the last checkpoint
// for a run.
type Store interface {
	Save(ctx context.Context, state *ResearchState) error
	Load(ctx context.Context, runID string) (*ResearchState, error)
	Delete(ctx context.Context, runID string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-memory implementation of Store, used in tests and
// for runs that do not need durability.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
	}
}

// Save stores a snapshot of the current state.
func (m *MemoryStore) Save(ctx context.Context, state *ResearchState) error {
	snap := state.Snapshot()
	if snap.ID == "" {
		return fmt.Errorf("run id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.ID] = snap
	return nil
}

// Load restores the state for a run ID.
func (m *MemoryStore) Load(ctx context.Context, runID string) (*ResearchState, error) {
	m.mu.RLock()
	snap, exists := m.snapshots[runID]
	m.mu.RUnlock()

	if !exists {
		return nil, &domain.StateLoadError{RunID: runID, Err: fmt.Errorf("not found")}
	}

	state, err := FromSnapshot(snap)
	if err != nil {
		return nil, &domain.StateLoadError{RunID: runID, Err: err}
	}
	return state, nil
}

// Delete removes a run's checkpoint.
func (m *MemoryStore) Delete(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, runID)
	return nil
}

// List returns the stored run IDs.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// FileStore persists one JSON document per run under a base directory.
// Writes go through a temp file and rename so a checkpoint is either
// fully written or absent; a crash never leaves a torn document behind.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a file-backed store, creating the directory if
// needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the state snapshot to <baseDir>/<runID>.json.
func (f *FileStore) Save(ctx context.Context, state *ResearchState) error {
	snap := state.Snapshot()
	if snap.ID == "" {
		return fmt.Errorf("run id is required")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	final := f.path(snap.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit state file: %w", err)
	}
	return nil
}

// Load reads and validates the snapshot for a run ID. An unreadable,
// unparsable or structurally invalid document yields a StateLoadError
// and never a partially populated state.
func (f *FileStore) Load(ctx context.Context, runID string) (*ResearchState, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path(runID))
	f.mu.Unlock()
	if err != nil {
		return nil, &domain.StateLoadError{RunID: runID, Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &domain.StateLoadError{RunID: runID, Err: err}
	}

	state, err := FromSnapshot(snap)
	if err != nil {
		return nil, &domain.StateLoadError{RunID: runID, Err: err}
	}
	return state, nil
}

// Delete removes the state file for a run.
func (f *FileStore) Delete(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// List returns the run IDs with a stored checkpoint.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FileStore) path(runID string) string {
	return filepath.Join(f.baseDir, runID+".json")
}
