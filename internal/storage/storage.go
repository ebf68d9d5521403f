package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// ErrNotFound is returned when a requested record doesn't exist
var ErrNotFound = errors.New("not found")

// IndexStore loads and persists the hash index and the token index. Save
// replaces both tables in full; a failed Save never leaves a partially
// written table behind.
type IndexStore interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, index *Index) error
	Close() error
}

// RunRecorder is implemented by stores that keep a history of runs
type RunRecorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
	LastRun(ctx context.Context) (*RunRecord, error)
}

// Index is the pair of persisted mappings
type Index struct {
	// Hashes maps a source path to its last processed content digest
	Hashes map[string]string
	// Tokens maps a converted artifact path to its token count
	Tokens map[string]int
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		Hashes: make(map[string]string),
		Tokens: make(map[string]int),
	}
}

// Clone returns a deep copy of the index
func (idx *Index) Clone() *Index {
	out := &Index{
		Hashes: make(map[string]string, len(idx.Hashes)),
		Tokens: make(map[string]int, len(idx.Tokens)),
	}
	for k, v := range idx.Hashes {
		out.Hashes[k] = v
	}
	for k, v := range idx.Tokens {
		out.Tokens[k] = v
	}
	return out
}

// TotalTokens sums every token count in the index
func (idx *Index) TotalTokens() int {
	total := 0
	for _, n := range idx.Tokens {
		total += n
	}
	return total
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunRecord summarises one pipeline run
type RunRecord struct {
	ID            string
	Root          string
	DocxConverter string
	Discovered    int
	Converted     int
	Unchanged     int
	Failed        int
	TotalTokens   int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Location describes where a store keeps its tables, for user-facing output
func Location(s IndexStore) string {
	switch st := s.(type) {
	case *CSVStore:
		hash, tok := st.Paths()
		return filepath.Base(hash) + " and " + filepath.Base(tok)
	case *SQLiteStorage:
		return filepath.Base(st.Path())
	default:
		return "the index store"
	}
}

// Store backends accepted by Open
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open opens the index store of the given backend for root. An empty
// backend selects CSV.
func Open(backend, root string) (IndexStore, error) {
	switch backend {
	case "", BackendCSV:
		return NewCSVStore(root), nil
	case BackendSQLite:
		store, err := NewSQLiteStorage(filepath.Join(root, DefaultDBFilename))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", backend, BackendCSV, BackendSQLite)
	}
}
