package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultDBFilename is the SQLite store location, relative to the root
const DefaultDBFilename = ".docindex.db"

// SQLiteStorage keeps both tables and the run history in one SQLite database
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Path returns the database location
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Load reads both tables
func (s *SQLiteStorage) Load(ctx context.Context) (*Index, error) {
	idx := NewIndex()

	rows, err := s.db.QueryContext(ctx, `SELECT file, hash FROM hash_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hash index: %w", err)
	}
	for rows.Next() {
		var file, hash string
		if err := rows.Scan(&file, &hash); err != nil {
			_ = rows.Close()
			return nil, err
		}
		idx.Hashes[file] = hash
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT file, tokens FROM token_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query token index: %w", err)
	}
	for rows.Next() {
		var file string
		var tokens int
		if err := rows.Scan(&file, &tokens); err != nil {
			_ = rows.Close()
			return nil, err
		}
		idx.Tokens[file] = tokens
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return idx, nil
}

// Save replaces both tables inside one transaction
func (s *SQLiteStorage) Save(ctx context.Context, index *Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hash_index`); err != nil {
		return fmt.Errorf("failed to clear hash index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM token_index`); err != nil {
		return fmt.Errorf("failed to clear token index: %w", err)
	}

	hashStmt, err := tx.PrepareContext(ctx, `INSERT INTO hash_index (file, hash) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = hashStmt.Close() }()
	for _, file := range SortedKeys(index.Hashes) {
		if _, err := hashStmt.ExecContext(ctx, file, index.Hashes[file]); err != nil {
			return fmt.Errorf("failed to store hash for %s: %w", file, err)
		}
	}

	tokenStmt, err := tx.PrepareContext(ctx, `INSERT INTO token_index (file, tokens) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = tokenStmt.Close() }()
	for _, file := range SortedKeys(index.Tokens) {
		if _, err := tokenStmt.ExecContext(ctx, file, index.Tokens[file]); err != nil {
			return fmt.Errorf("failed to store token count for %s: %w", file, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordRun appends a run to the history
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *RunRecord) error {
	query := `
		INSERT INTO runs (id, root, docx_converter, discovered, converted, unchanged,
		                  failed, total_tokens, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Root, run.DocxConverter, run.Discovered, run.Converted, run.Unchanged,
		run.Failed, run.TotalTokens, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished run
func (s *SQLiteStorage) LastRun(ctx context.Context) (*RunRecord, error) {
	query := `
		SELECT id, root, docx_converter, discovered, converted, unchanged,
		       failed, total_tokens, started_at, finished_at
		FROM runs
		ORDER BY rowid DESC
		LIMIT 1
	`
	var run RunRecord
	var started, finished time.Time
	err := s.db.QueryRowContext(ctx, query).Scan(
		&run.ID, &run.Root, &run.DocxConverter, &run.Discovered, &run.Converted,
		&run.Unchanged, &run.Failed, &run.TotalTokens, &started, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt = started
	run.FinishedAt = finished
	return &run, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
