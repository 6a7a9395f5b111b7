// Package store provides SQLite-backed persistence for completed scan runs,
// so later invocations can diff against an earlier model or seed an
// incremental scan with a previous run's results.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

// Run is one persisted scan: the merged model plus per-plugin statistics.
type Run struct {
	ID        string
	Root      string
	Project   string
	CreatedAt time.Time
	Model     *model.ArchitectureModel
	Stats     map[string]scan.Statistics
}

// RunSummary is the listing view of a run, without the model payload.
type RunSummary struct {
	ID        string
	Root      string
	Project   string
	CreatedAt time.Time
}

// Store wraps a SQLite database holding scan history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures the
// schema exists. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmt := `CREATE TABLE IF NOT EXISTS scan_runs (
		id         TEXT PRIMARY KEY,
		root       TEXT NOT NULL,
		project    TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT (datetime('now')),
		model      TEXT NOT NULL,
		stats      TEXT NOT NULL
	)`
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// Save persists a completed run and returns its id. A run without an id is
// assigned a fresh one.
func (s *Store) Save(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Model == nil {
		return "", fmt.Errorf("save run: model is nil")
	}

	modelJSON, err := json.Marshal(run.Model)
	if err != nil {
		return "", fmt.Errorf("marshal model: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO scan_runs (id, root, project, created_at, model, stats)
		 VALUES (?, ?, ?, datetime('now'), ?, ?)`,
		run.ID, run.Root, run.Project, string(modelJSON), string(statsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return run.ID, nil
}

// Get retrieves a run by id. Returns nil if the run is not found.
func (s *Store) Get(id string) (*Run, error) {
	return s.queryOne(
		`SELECT id, root, project, created_at, model, stats
		 FROM scan_runs WHERE id = ?`, id)
}

// Latest retrieves the most recent run for a scan root. Returns nil if the
// root has never been scanned.
func (s *Store) Latest(root string) (*Run, error) {
	return s.queryOne(
		`SELECT id, root, project, created_at, model, stats
		 FROM scan_runs WHERE root = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, root)
}

func (s *Store) queryOne(query string, arg string) (*Run, error) {
	var run Run
	var modelJSON, statsJSON string
	err := s.db.QueryRow(query, arg).Scan(
		&run.ID, &run.Root, &run.Project, &run.CreatedAt, &modelJSON, &statsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Model = &model.ArchitectureModel{}
	if err := json.Unmarshal([]byte(modelJSON), run.Model); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &run, nil
}

// List returns run summaries for a root, newest first, capped at limit.
// A non-positive limit returns every run.
func (s *Store) List(root string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, root, project, created_at
		 FROM scan_runs WHERE root = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, root, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.Root, &rs.Project, &rs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}
