// Package discovery enumerates the source documents under an index root.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/docindex/pkg/types"
)

// HiddenMarker prefixes directory names that are never descended into
const HiddenMarker = "."

// ErrRootNotDirectory is returned when the root is missing or not a directory
var ErrRootNotDirectory = errors.New("index root is not an accessible directory")

// Options controls discovery
type Options struct {
	// Exclude holds doublestar patterns matched against slash-separated
	// relative paths
	Exclude []string
	Logger  *slog.Logger
}

// Discover walks root and returns supported source files sorted by relative
// path. Files under any directory whose name starts with HiddenMarker are
// skipped. An unreadable subdirectory is logged and skipped; only an
// inaccessible root is an error.
func Discover(root string, opts Options) ([]types.SourceFile, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootNotDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	var files []types.SourceFile
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), HiddenMarker) {
				return filepath.SkipDir
			}
			return nil
		}

		if !types.IsSupported(info.Name()) {
			return nil
		}
		if !isRegular(path, info) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel, opts.Exclude) {
			return nil
		}

		fam, err := types.Classify(rel)
		if err != nil {
			return nil
		}
		files = append(files, types.SourceFile{RelPath: rel, AbsPath: path, Family: fam})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrRootNotDirectory, err)
		}
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// isRegular accepts regular files and symlinks that resolve to one
func isRegular(path string, info os.FileInfo) bool {
	if info.Mode().IsRegular() {
		return true
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(path)
	return err == nil && target.Mode().IsRegular()
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
