package sessionlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for session records.
// Records are append-only: finalized rows are never updated.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path, creating the
// parent directory if needed
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a finalized session record
func (s *Store) Append(rec *domain.SessionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (run_id, session, phase, outcome, classification, attempts, wait_ms, duration_ms, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.Session,
		string(rec.Phase),
		string(rec.Outcome),
		string(rec.Classification),
		rec.Attempts,
		rec.WaitTotal.Milliseconds(),
		rec.Duration.Milliseconds(),
		rec.Error,
		rec.StartedAt,
	)
	return err
}

// ListByRun returns all session records for a run in session order
func (s *Store) ListByRun(runID string) ([]*domain.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, session, phase, outcome, classification, attempts, wait_ms, duration_ms, error, started_at
		FROM sessions WHERE run_id = ? ORDER BY session
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRecent returns the most recent records across all runs
func (s *Store) ListRecent(limit int) ([]*domain.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, session, phase, outcome, classification, attempts, wait_ms, duration_ms, error, started_at
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByRun returns the number of recorded sessions for a run
func (s *Store) CountByRun(runID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

func scanRecord(rows *sql.Rows) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var phase, outcome, classification string
	var waitMS, durationMS int64

	if err := rows.Scan(
		&rec.RunID,
		&rec.Session,
		&phase,
		&outcome,
		&classification,
		&rec.Attempts,
		&waitMS,
		&durationMS,
		&rec.Error,
		&rec.StartedAt,
	); err != nil {
		return nil, err
	}

	rec.Phase = domain.Phase(phase)
	rec.Outcome = domain.SessionOutcome(outcome)
	rec.Classification = domain.Classification(classification)
	rec.WaitTotal = time.Duration(waitMS) * time.Millisecond
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}
