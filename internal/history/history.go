// package history keeps the append-only local record of submitted queries.
//
// Entries are write-once per task id with the status updated in place as the
// job progresses. The record exists for display; the research lifecycle
// never reads it back.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL UNIQUE,
	query TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'submitted',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
`

// Entry is one recorded query.
type Entry struct {
	ID        string
	TaskID    string
	Query     string
	Status    string
	CreatedAt time.Time
}

// Store persists history entries in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore prepares the history table on the given database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records a newly submitted query. Appending the same task id twice
// is an error; entries are write-once.
func (s *Store) Append(taskID, query string) error {
	_, err := s.db.Exec(
		`INSERT INTO history (id, task_id, query, status) VALUES (?, ?, ?, 'submitted')`,
		uuid.New().String(), taskID, query,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// UpdateStatus sets the recorded status for a task.
func (s *Store) UpdateStatus(taskID string, status string) error {
	res, err := s.db.Exec(`UPDATE history SET status = ? WHERE task_id = ?`, status, taskID)
	if err != nil {
		return fmt.Errorf("failed to update history status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no history entry for task %s", taskID)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, task_id, query, status, created_at FROM history ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search returns entries whose query contains term, newest first.
func (s *Store) Search(term string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, query, status, created_at FROM history
		 WHERE query LIKE ? ORDER BY created_at DESC`,
		"%"+term+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Get returns the entry for one task id.
func (s *Store) Get(taskID string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, task_id, query, status, created_at FROM history WHERE task_id = ?`, taskID,
	)
	var e Entry
	if err := row.Scan(&e.ID, &e.TaskID, &e.Query, &e.Status, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no history entry for task %s", taskID)
		}
		return nil, fmt.Errorf("failed to read history entry: %w", err)
	}
	return &e, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Query, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
