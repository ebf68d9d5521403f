package netdocs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const searchQuery = `SELECT id, name AS label FROM netdocs WHERE name ILIKE '%' || $1 || '%' ORDER BY created DESC LIMIT 10`

const labelsQuery = `SELECT id, name AS label FROM netdocs WHERE id = ANY($1)`

// Matter is a workspace found by name
type Matter struct {
	ID    string
	Label string
}

// Matters searches the matter table in Postgres
type Matters struct {
	db *sql.DB
}

// OpenMatters connects to the matter database at dsn
func OpenMatters(dsn string) (*Matters, error) {
	if dsn == "" {
		return nil, ErrNotConfigured
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open matter database: %w", err)
	}
	return NewMatters(db), nil
}

// NewMatters wraps an open database
func NewMatters(db *sql.DB) *Matters {
	return &Matters{db: db}
}

// Close closes the database
func (m *Matters) Close() error {
	return m.db.Close()
}

// Search returns up to ten matters whose name contains term, newest first
func (m *Matters) Search(ctx context.Context, term string) ([]Matter, error) {
	rows, err := m.db.QueryContext(ctx, searchQuery, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search matters: %w", err)
	}
	return scanMatters(rows)
}

// Labels returns the matters with the given ids, in no particular order
func (m *Matters) Labels(ctx context.Context, ids []string) ([]Matter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := m.db.QueryContext(ctx, labelsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to look up matters: %w", err)
	}
	return scanMatters(rows)
}

func scanMatters(rows *sql.Rows) ([]Matter, error) {
	defer func() { _ = rows.Close() }()

	var out []Matter
	for rows.Next() {
		var m Matter
		if err := rows.Scan(&m.ID, &m.Label); err != nil {
			return nil, fmt.Errorf("failed to scan matter: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matters: %w", err)
	}
	return out, nil
}
