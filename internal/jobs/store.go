package jobs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/risuops/risuctl/internal/diag"
)

// Store is the SQLite-backed job registry. It is the only state shared
// between the invocation that starts an async run, the detached worker,
// and any number of later poll calls.
type Store struct {
	conn *sql.DB
	path string
}

// DefaultDBPath returns ~/.risuctl/jobs.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".risuctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "jobs.db"), nil
}

// Open opens or creates the registry at the given path and applies the
// schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open job registry: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping job registry: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
    job_id        TEXT PRIMARY KEY,
    pid           INTEGER NOT NULL DEFAULT 0,
    spool_dir     TEXT NOT NULL,
    tool_path     TEXT NOT NULL,
    output_path   TEXT,
    output_format TEXT,
    status        TEXT NOT NULL CHECK(status IN ('running','completed','failed')),
    rc            INTEGER NOT NULL DEFAULT 0,
    msg           TEXT,
    started_at    TEXT NOT NULL,
    finished_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, started_at DESC);
`

func (s *Store) migrate() error {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Create inserts a new job record.
func (s *Store) Create(rec *diag.JobRecord) error {
	_, err := s.conn.Exec(
		`INSERT INTO jobs (job_id, pid, spool_dir, tool_path, output_path, output_format, status, rc, msg, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PID, rec.SpoolDir, rec.ToolPath, rec.OutputPath, rec.OutputFormat,
		rec.Status, rec.RC, rec.Msg, rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a job record, or nil when the id is unknown.
func (s *Store) Get(id string) (*diag.JobRecord, error) {
	row := s.conn.QueryRow(
		`SELECT job_id, pid, spool_dir, tool_path, output_path, output_format, status, rc, msg, started_at, finished_at
		 FROM jobs WHERE job_id = ?`, id,
	)
	rec, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return rec, nil
}

// List returns all job records, newest first.
func (s *Store) List() ([]*diag.JobRecord, error) {
	rows, err := s.conn.Query(
		`SELECT job_id, pid, spool_dir, tool_path, output_path, output_format, status, rc, msg, started_at, finished_at
		 FROM jobs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var recs []*diag.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetPID records the detached worker's pid.
func (s *Store) SetPID(id string, pid int) error {
	_, err := s.conn.Exec(`UPDATE jobs SET pid = ? WHERE job_id = ?`, pid, id)
	if err != nil {
		return fmt.Errorf("set pid for job %s: %w", id, err)
	}
	return nil
}

// MarkCompleted settles a job as finished successfully.
func (s *Store) MarkCompleted(id string, rc int) error {
	return s.settle(id, diag.JobCompleted, rc, "")
}

// MarkFailed settles a job as failed with a reason.
func (s *Store) MarkFailed(id string, msg string) error {
	return s.settle(id, diag.JobFailed, -1, msg)
}

func (s *Store) settle(id, status string, rc int, msg string) error {
	_, err := s.conn.Exec(
		`UPDATE jobs SET status = ?, rc = ?, msg = ?, finished_at = ? WHERE job_id = ?`,
		status, rc, msg, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("settle job %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*diag.JobRecord, error) {
	var rec diag.JobRecord
	var outputPath, outputFormat, msg, finishedAt sql.NullString
	var startedAt string
	err := row.Scan(&rec.ID, &rec.PID, &rec.SpoolDir, &rec.ToolPath, &outputPath,
		&outputFormat, &rec.Status, &rec.RC, &msg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	rec.OutputPath = outputPath.String
	rec.OutputFormat = outputFormat.String
	rec.Msg = msg.String
	if t, perr := time.Parse(time.RFC3339, startedAt); perr == nil {
		rec.StartedAt = t
	}
	if finishedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, finishedAt.String); perr == nil {
			rec.FinishedAt = t
		}
	}
	return &rec, nil
}
