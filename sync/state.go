package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/iancoleman/strcase"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusError     RunStatus = "error"
)

// State is the persisted sync state for one mapping. The orchestrator is the
// sole writer for the duration of a run; it persists after every page so an
// interrupted run can resume from LastCursor. LastCursor is cleared on
// successful completion - a cleared cursor means nothing to resume.
type State struct {
	LastSyncAt     *time.Time `json:"lastSyncAt"`
	LastCursor     string     `json:"lastCursor,omitempty"`
	SyncToken      string     `json:"syncToken,omitempty"`
	TotalSynced    int        `json:"totalSynced"`
	LastRunRecords int        `json:"lastRunRecords"`
	Status         RunStatus  `json:"status"`
	LastError      string     `json:"lastError,omitempty"`
}

// NewState returns the default state for a mapping that has never run.
func NewState() State {
	return State{Status: StatusIdle}
}

// StateStore persists sync state keyed by mapping name.
type StateStore interface {
	// Load returns the state for a mapping, or the default state if none
	// has been persisted yet.
	Load(name string) (State, error)

	// Save overwrites the whole state for a mapping.
	Save(name string, state State) error
}

// FileStateStore keeps one JSON state file per mapping under Dir.
type FileStateStore struct {
	Dir string
}

func (f FileStateStore) path(name string) string {
	return filepath.Join(f.Dir, strcase.ToSnake(name)+".json")
}

func (f FileStateStore) Load(name string) (State, error) {
	raw, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return NewState(), fmt.Errorf("failed to read state for %s %w", name, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return NewState(), fmt.Errorf("failed to parse state for %s %w", name, err)
	}
	if state.Status == "" {
		state.Status = StatusIdle
	}
	return state, nil
}

func (f FileStateStore) Save(name string, state State) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir %w", err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state for %s %w", name, err)
	}
	if err := os.WriteFile(f.path(name), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write state for %s %w", name, err)
	}
	return nil
}
