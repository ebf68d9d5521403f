package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/pkg/types"
)

// DefaultDebounce is how long the watcher waits for events to settle
const DefaultDebounce = 2 * time.Second

// WatchOptions configures a Watcher
type WatchOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
	// OnRun is called after every run, including the initial one
	OnRun func(*Statistics, error)
}

// Watcher re-runs the pipeline when supported sources under the root are
// created, written, renamed or removed. Artifacts and index tables never
// match a supported suffix, so a run does not retrigger itself.
type Watcher struct {
	idx    *Indexer
	cfg    *Config
	opts   WatchOptions
	logger *slog.Logger
}

// NewWatcher creates a watcher for cfg.Root
func NewWatcher(idx *Indexer, cfg *Config, opts WatchOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{idx: idx, cfg: cfg, opts: opts, logger: opts.Logger}
}

// Run performs an initial run, then watches until ctx is done. Runs are
// serial; events arriving during a run schedule the next one.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addTree(fsw, w.cfg.Root); err != nil {
		return err
	}

	w.runOnce(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, ev) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	stats, err := w.idx.Run(ctx, w.cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("indexing run failed", "error", err)
	}
	if w.opts.OnRun != nil {
		w.opts.OnRun(stats, err)
	}
}

// relevant reports whether an event should schedule a run. New directories
// are added to the watch set.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if hidden(filepath.Base(ev.Name)) {
				return false
			}
			if err := w.addTree(fsw, ev.Name); err != nil {
				w.logger.Warn("failed to watch directory", "path", ev.Name, "error", err)
			}
			return true
		}
	}
	if !types.IsSupported(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// addTree watches dir and every non-hidden directory below it
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, discovery.HiddenMarker)
}
