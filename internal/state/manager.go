package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// ErrNotFound is returned by Load when no run state exists
var ErrNotFound = errors.New("no run state found")

const (
	stateFile    = "state.json"
	goalFile     = "goal.txt"
	criteriaFile = "criteria.txt"
	planFile     = "plan.md"
	progressFile = "progress.md"
	contextFile  = "context.md"
	logsDir      = "logs"
	backupsDir   = "backups"

	backupKeep = 5
)

// Manager persists all run state under a single state directory.
// Save is the single commit point: no transition is considered to have
// happened until its Save returns.
type Manager struct {
	dir string
}

// NewManager creates a Manager rooted at dir
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the state directory path
func (m *Manager) Dir() string { return m.dir }

// Exists reports whether a persisted run is present
func (m *Manager) Exists() bool {
	_, err := os.Stat(filepath.Join(m.dir, stateFile))
	return err == nil
}

// Initialize creates the state directory and a fresh run in planning status
func (m *Manager) Initialize(goal, criteria, model string, opts domain.Options) (*domain.Run, error) {
	if err := os.MkdirAll(filepath.Join(m.dir, logsDir), 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	now := time.Now()
	run := &domain.Run{
		ID:        fmt.Sprintf("%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8]),
		Goal:      goal,
		Criteria:  criteria,
		Status:    domain.RunPlanning,
		Model:     model,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.Save(run); err != nil {
		return nil, err
	}
	if err := m.SaveGoal(goal); err != nil {
		return nil, err
	}
	if criteria != "" {
		if err := m.SaveCriteria(criteria); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// Save atomically writes the run to state.json via a temp file and
// rename, so a crash mid-write never leaves partial state visible.
func (m *Manager) Save(run *domain.Run) error {
	run.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Keep a copy of the last good state before overwriting it, so a
	// torn write can be recovered on the next Load.
	if _, err := m.Backup(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("backing up state: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(m.dir, stateFile)); err != nil {
		return fmt.Errorf("committing state: %w", err)
	}
	return nil
}

// Load reads the persisted run. A corrupt state.json falls back to the
// newest readable backup.
func (m *Manager) Load() (*domain.Run, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		if recovered, rerr := m.loadFromBackup(); rerr == nil {
			return recovered, nil
		}
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &run, nil
}

// Backup copies the current state.json to a timestamped file under
// backups/, pruning old copies beyond backupKeep.
func (m *Manager) Backup() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, stateFile))
	if err != nil {
		return "", err
	}

	dir := filepath.Join(m.dir, backupsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("state.%s.json", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	m.pruneBackups()
	return path, nil
}

func (m *Manager) pruneBackups() {
	entries, err := os.ReadDir(filepath.Join(m.dir, backupsDir))
	if err != nil {
		return
	}
	// ReadDir sorts by name; timestamped names sort chronologically
	for len(entries) > backupKeep {
		os.Remove(filepath.Join(m.dir, backupsDir, entries[0].Name()))
		entries = entries[1:]
	}
}

func (m *Manager) loadFromBackup() (*domain.Run, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, backupsDir))
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(m.dir, backupsDir, entries[i].Name()))
		if err != nil {
			continue
		}
		var run domain.Run
		if err := json.Unmarshal(data, &run); err == nil {
			return &run, nil
		}
	}
	return nil, errors.New("no readable backup")
}

// LogPath returns the session log file path for a run
func (m *Manager) LogPath(runID string) string {
	return filepath.Join(m.dir, logsDir, fmt.Sprintf("run-%s.txt", runID))
}

// SessionDBPath returns the durable session database path. It lives
// under the logs directory so success cleanup retains it.
func (m *Manager) SessionDBPath() string {
	return filepath.Join(m.dir, logsDir, "sessions.db")
}

// AppendLog appends one line to the run's session log. The log is
// append-only and survives success cleanup.
func (m *Manager) AppendLog(runID, line string) error {
	if err := os.MkdirAll(filepath.Join(m.dir, logsDir), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(m.LogPath(runID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", time.Now().Format(time.RFC3339), line)
	return err
}

// CleanupOnSuccess removes all run-scoped artifacts except the
// session logs.
func (m *Manager) CleanupOnSuccess(run *domain.Run) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == logsDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CleanupOnStop retains all artifacts; stopping only marks status,
// the data stays resumable.
func (m *Manager) CleanupOnStop(run *domain.Run) error {
	return nil
}
