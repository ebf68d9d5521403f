package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dshills/docindex/internal/fsutil"
)

const (
	// HashIndexFilename is the hash index table, relative to the root
	HashIndexFilename = ".hash_index.csv"
	// TokenIndexFilename is the token index table, relative to the root
	TokenIndexFilename = ".token_index.csv"
)

// CSVStore keeps each table in its own CSV file under the root. Rows are
// written sorted by file with CRLF line endings.
type CSVStore struct {
	hashPath  string
	tokenPath string
}

// NewCSVStore creates a store for the tables under root
func NewCSVStore(root string) *CSVStore {
	return &CSVStore{
		hashPath:  filepath.Join(root, HashIndexFilename),
		tokenPath: filepath.Join(root, TokenIndexFilename),
	}
}

// Paths returns the hash and token table locations
func (s *CSVStore) Paths() (string, string) {
	return s.hashPath, s.tokenPath
}

// Load reads both tables. A missing table loads as empty.
func (s *CSVStore) Load(ctx context.Context) (*Index, error) {
	idx := NewIndex()

	err := readTable(s.hashPath, "hash", func(file, value string) error {
		idx.Hashes[file] = value
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readTable(s.tokenPath, "tokens", func(file, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid token count %q for %s", value, file)
		}
		idx.Tokens[file] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	return idx, nil
}

// Save rewrites both tables. Each table is replaced atomically.
func (s *CSVStore) Save(ctx context.Context, index *Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := writeTable(s.hashPath, "hash", SortedKeys(index.Hashes), func(k string) string {
		return index.Hashes[k]
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", HashIndexFilename, err)
	}

	err = writeTable(s.tokenPath, "tokens", SortedKeys(index.Tokens), func(k string) string {
		return strconv.Itoa(index.Tokens[k])
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", TokenIndexFilename, err)
	}
	return nil
}

// Close is a no-op
func (s *CSVStore) Close() error {
	return nil
}

func readTable(path, valueColumn string, add func(file, value string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	fileCol, valueCol := -1, -1
	for i, name := range header {
		switch name {
		case "file":
			fileCol = i
		case valueColumn:
			valueCol = i
		}
	}
	if fileCol < 0 || valueCol < 0 {
		return fmt.Errorf("%s: header must contain file and %s columns", path, valueColumn)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := add(rec[fileCol], rec[valueCol]); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

func writeTable(path, valueColumn string, keys []string, value func(string) string) error {
	return fsutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.UseCRLF = true
		if err := cw.Write([]string{"file", valueColumn}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := cw.Write([]string{k, value(k)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
