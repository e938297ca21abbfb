// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records conversion runs and per-document outcomes in a
// SQLite database. The latest state per source file drives incremental
// skipping of documents whose PDF is already current.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/word2pdf/pkg/types"
)

const (
	appDir = "word2pdf"
	dbFile = "ledger.db"

	defaultHistoryLimit = 50
)

// DefaultPath returns ~/.config/word2pdf/ledger.db (or the platform's
// equivalent user config directory).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, appDir, dbFile), nil
}

// Ledger manages the conversion history database.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at cfg.Path (DefaultPath when empty) and
// creates the schema if it does not exist.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	path := cfg.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Concurrent workers share one writer connection.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, path: path}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input_dir TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			backend TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			converted INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS conversions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT REFERENCES runs(id),
			source_path TEXT NOT NULL,
			rel_path TEXT,
			pdf_path TEXT NOT NULL,
			status TEXT NOT NULL,
			backend TEXT,
			pages INTEGER,
			error TEXT,
			reason TEXT,
			source_mod_time TEXT,
			source_size INTEGER,
			duration_ms INTEGER,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_run_id ON conversions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)`,
		`CREATE TABLE IF NOT EXISTS documents (
			source_path TEXT PRIMARY KEY,
			pdf_path TEXT NOT NULL,
			status TEXT NOT NULL,
			source_mod_time TEXT,
			source_size INTEGER,
			pages INTEGER,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a run row. Counts are filled in by FinishRun.
func (l *Ledger) BeginRun(ctx context.Context, run types.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_dir, output_dir, backend, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.InputDir, run.OutputDir, run.Backend, formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, converted, skipped, failed int) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, converted = ?, skipped = ?, failed = ? WHERE id = ?`,
		formatTime(time.Now()), converted, skipped, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: no such run", runID)
	}
	return nil
}

// Record appends a conversion record and updates the latest state of its
// source document in one transaction.
func (l *Ledger) Record(ctx context.Context, rec types.ConversionRecord) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var runID any
	if rec.RunID != "" {
		runID = rec.RunID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversions (run_id, source_path, rel_path, pdf_path, status, backend, pages,
			error, reason, source_mod_time, source_size, duration_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.SourcePath, rec.RelPath, rec.PDFPath, string(rec.Status), rec.Backend, rec.Pages,
		rec.Error, rec.Reason, formatTime(rec.SourceModTime), rec.SourceSize,
		rec.Duration.Milliseconds(), formatTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting conversion for %s: %w", rec.SourcePath, err)
	}

	// Skips leave the document state as the conversion that produced the PDF.
	if rec.Status != types.StatusSkipped {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (source_path, pdf_path, status, source_mod_time, source_size, pages, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(source_path) DO UPDATE SET
				pdf_path=excluded.pdf_path, status=excluded.status,
				source_mod_time=excluded.source_mod_time, source_size=excluded.source_size,
				pages=excluded.pages, updated_at=excluded.updated_at`,
			rec.SourcePath, rec.PDFPath, string(rec.Status), formatTime(rec.SourceModTime),
			rec.SourceSize, rec.Pages, formatTime(rec.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("updating document state for %s: %w", rec.SourcePath, err)
		}
	}

	return tx.Commit()
}

// DocumentState is the latest known conversion of one source file.
type DocumentState struct {
	SourcePath    string
	PDFPath       string
	Status        types.ConversionStatus
	SourceModTime time.Time
	SourceSize    int64
	Pages         int
	UpdatedAt     time.Time
}

// Lookup returns the latest state of source. The boolean is false when the
// document has never been recorded.
func (l *Ledger) Lookup(ctx context.Context, source string) (DocumentState, bool, error) {
	var (
		st               DocumentState
		status           string
		modTime, updated sql.NullString
		pages            sql.NullInt64
		size             sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT source_path, pdf_path, status, source_mod_time, source_size, pages, updated_at
		 FROM documents WHERE source_path = ?`, source,
	).Scan(&st.SourcePath, &st.PDFPath, &status, &modTime, &size, &pages, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentState{}, false, nil
	}
	if err != nil {
		return DocumentState{}, false, fmt.Errorf("looking up %s: %w", source, err)
	}

	st.Status = types.ConversionStatus(status)
	st.SourceModTime = parseTime(modTime.String)
	st.SourceSize = size.Int64
	st.Pages = int(pages.Int64)
	st.UpdatedAt = parseTime(updated.String)
	return st, true, nil
}

// Current reports whether source was last converted successfully from a file
// with the given modification time and size.
func (l *Ledger) Current(ctx context.Context, source string, modTime time.Time, size int64) (bool, error) {
	st, ok, err := l.Lookup(ctx, source)
	if err != nil || !ok {
		return false, err
	}
	return st.Status == types.StatusConverted &&
		st.SourceModTime.Equal(modTime) &&
		st.SourceSize == size, nil
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, input_dir, output_dir, backend, started_at, finished_at, converted, skipped, failed
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var (
			r                 types.Run
			backend, finished sql.NullString
			started           string
		)
		if err := rows.Scan(&r.ID, &r.InputDir, &r.OutputDir, &backend, &started, &finished,
			&r.Converted, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Backend = backend.String
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished.String)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// HistoryOptions filters conversion history.
type HistoryOptions struct {
	RunID  string
	Status types.ConversionStatus
	Limit  int
}

// History returns conversion records matching opts, newest first.
func (l *Ledger) History(ctx context.Context, opts HistoryOptions) ([]types.ConversionRecord, error) {
	query := `SELECT run_id, source_path, rel_path, pdf_path, status, backend, pages, error, reason,
			source_mod_time, source_size, duration_ms, finished_at
		 FROM conversions WHERE 1=1`
	var args []any
	if opts.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, opts.RunID)
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []types.ConversionRecord
	for rows.Next() {
		var (
			rec                                    types.ConversionRecord
			runID, rel, backend, errMsg, reason    sql.NullString
			modTime                                sql.NullString
			status, finished                       string
			pages, size, durationMS                sql.NullInt64
		)
		if err := rows.Scan(&runID, &rec.SourcePath, &rel, &rec.PDFPath, &status, &backend, &pages,
			&errMsg, &reason, &modTime, &size, &durationMS, &finished); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		rec.RunID = runID.String
		rec.RelPath = rel.String
		rec.Status = types.ConversionStatus(status)
		rec.Backend = backend.String
		rec.Pages = int(pages.Int64)
		rec.Error = errMsg.String
		rec.Reason = reason.String
		rec.SourceModTime = parseTime(modTime.String)
		rec.SourceSize = size.Int64
		rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		rec.FinishedAt = parseTime(finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
