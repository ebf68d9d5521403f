package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docindex/internal/converter"
	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/hasher"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/internal/workerpool"
	"github.com/dshills/docindex/pkg/types"
)

// ErrIndexingInProgress is returned when a run is requested while another run
// of the same Indexer is still going
var ErrIndexingInProgress = errors.New("indexing already in progress")

// State is a pipeline stage. Every stage completes for all files before the
// next one starts.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateDiscovered
	StateHashed
	StateDetected
	StateConverted
	StateCounted
	StatePruned
	StatePersisted
)

var stateNames = [...]string{"idle", "loaded", "discovered", "hashed", "detected", "converted", "counted", "pruned", "persisted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Indexer runs the incremental pipeline:
// load -> discover -> hash -> detect -> convert -> count -> prune -> persist
type Indexer struct {
	store     storage.IndexStore
	tokenizer tokens.Tokenizer
	logger    *slog.Logger
	lock      IndexLock
}

// Config contains configuration for a run
type Config struct {
	Root          string              // Directory to index
	Workers       int                 // Pool size per stage (default: runtime.NumCPU())
	DocxConverter types.DocxConverter // DOCX backend (default: markitdown)
	Exclude       []string            // Extra doublestar exclude patterns
	Policy        FailedConversionPolicy

	// KeepUnreadable retains the prior hash entry of a discovered file that
	// could not be hashed this run instead of pruning it
	KeepUnreadable bool

	// Converter overrides; nil selects markitdown / superdoc-redlines
	Markdown   converter.Converter
	Structured converter.Converter
}

// Statistics describes a finished run
type Statistics struct {
	RunID           string
	State           State
	FilesDiscovered int
	FilesHashed     int
	FilesSelected   int
	FilesConverted  int
	FilesUnchanged  int
	FilesCounted    int
	HashFailures    int
	ConvertFailures int
	CountFailures   int
	TotalTokens     int
	Duration        time.Duration
	ErrorMessages   []string
}

// Failed returns the number of per-file failures across all stages
func (s *Statistics) Failed() int {
	return s.HashFailures + s.ConvertFailures + s.CountFailures
}

// New creates an Indexer. The tokenizer is shared by every counting worker
// and must be safe for concurrent use.
func New(store storage.IndexStore, tok tokens.Tokenizer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, tokenizer: tok, logger: logger}
}

// Running reports whether a run is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Store returns the index store
func (idx *Indexer) Store() storage.IndexStore {
	return idx.store
}

// Run executes one pipeline run. Per-file failures are logged and counted
// but never abort the run; only loading, discovery of the root, and
// persisting the index are fatal.
func (idx *Indexer) Run(ctx context.Context, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DocxConverter == "" {
		cfg.DocxConverter = types.DefaultDocxConverter
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	cfg.Root = root

	startTime := time.Now()
	stats := &Statistics{RunID: uuid.NewString(), ErrorMessages: make([]string, 0)}
	logger := idx.logger.With("run_id", stats.RunID)
	advance := func(s State) {
		stats.State = s
		logger.Debug("stage complete", "state", s.String())
	}

	prior, err := idx.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	advance(StateLoaded)

	sources, err := discovery.Discover(cfg.Root, discovery.Options{Exclude: cfg.Exclude, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.FilesDiscovered = len(sources)
	advance(StateDiscovered)

	dispatcher := converter.NewDispatcher(converter.Options{
		Root:          cfg.Root,
		DocxConverter: cfg.DocxConverter,
		Markdown:      cfg.Markdown,
		Structured:    cfg.Structured,
		Workers:       cfg.Workers,
		Logger:        logger,
	})

	var (
		hashes    = map[string]string{}
		converted = map[string]string{}
		counts    = map[string]int{}
		unread    = map[string]struct{}{}
	)

	if len(sources) == 0 {
		logger.Info("no supported source files found", "root", cfg.Root)
	} else {
		logger.Info("hashing source files", "count", len(sources))
		var hashFailures []workerpool.Failure[types.SourceFile]
		hashes, hashFailures = hasher.HashAll(ctx, cfg.Workers, sources)
		for _, f := range hashFailures {
			idx.reportFailure(logger, stats, "hash", f)
		}
		stats.HashFailures = len(hashFailures)
		for _, src := range sources {
			if _, ok := hashes[src.RelPath]; !ok {
				unread[src.RelPath] = struct{}{}
			}
		}
	}
	stats.FilesHashed = len(hashes)
	advance(StateHashed)

	toConvert := SelectForConversion(sources, hashes, prior.Hashes, func(src types.SourceFile) bool {
		_, abs, err := dispatcher.ArtifactPath(src)
		return err == nil && fileExists(abs)
	})
	stats.FilesSelected = len(toConvert)
	advance(StateDetected)

	if len(toConvert) > 0 {
		logger.Info("converting files", "count", len(toConvert), "docx_converter", string(cfg.DocxConverter))
		var convFailures []workerpool.Failure[types.SourceFile]
		converted, convFailures = dispatcher.ConvertAll(ctx, toConvert)
		for _, f := range convFailures {
			idx.reportFailure(logger, stats, "convert", f)
		}
		stats.ConvertFailures = len(convFailures)
	}
	stats.FilesConverted = len(converted)
	hashIndex := MergeHashes(prior.Hashes, hashes, converted, cfg.Policy)
	advance(StateConverted)

	jobs := countJobs(cfg.Root, hashes, converted, prior.Tokens, cfg.DocxConverter)
	tokenIndex := make(map[string]int, len(prior.Tokens)+len(jobs))
	for k, v := range prior.Tokens {
		tokenIndex[k] = v
	}
	if len(jobs) > 0 {
		logger.Info("counting tokens", "count", len(jobs), "encoding", idx.tokenizer.Encoding())
		var countFailures []workerpool.Failure[tokens.Job]
		counter := tokens.NewCounter(idx.tokenizer, cfg.Workers, logger)
		counts, countFailures = counter.CountAll(ctx, jobs)
		for _, f := range countFailures {
			idx.reportFailure(logger, stats, "count", f)
		}
		stats.CountFailures = len(countFailures)
		for artifact, n := range counts {
			tokenIndex[artifact] = n
		}
	}
	stats.FilesCounted = len(counts)
	advance(StateCounted)

	live := KeySet(hashes)
	if cfg.KeepUnreadable {
		for rel := range unread {
			if _, ok := hashIndex[rel]; ok {
				live[rel] = struct{}{}
			}
		}
	}
	final := &storage.Index{Hashes: PruneToLive(hashIndex, live)}
	final.Tokens = PruneToLive(tokenIndex, LiveArtifacts(final.Hashes, cfg.DocxConverter))
	logPruned(logger, prior, final)
	advance(StatePruned)

	if err := idx.store.Save(ctx, final); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}
	advance(StatePersisted)

	stats.FilesUnchanged = stats.FilesDiscovered - stats.FilesConverted
	stats.TotalTokens = final.TotalTokens()
	stats.Duration = time.Since(startTime)

	if rec, ok := idx.store.(storage.RunRecorder); ok {
		err := rec.RecordRun(ctx, &storage.RunRecord{
			ID:            stats.RunID,
			Root:          cfg.Root,
			DocxConverter: string(cfg.DocxConverter),
			Discovered:    stats.FilesDiscovered,
			Converted:     stats.FilesConverted,
			Unchanged:     stats.FilesUnchanged,
			Failed:        stats.Failed(),
			TotalTokens:   stats.TotalTokens,
			StartedAt:     startTime,
			FinishedAt:    startTime.Add(stats.Duration),
		})
		if err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	logger.Info("index updated",
		"discovered", stats.FilesDiscovered,
		"converted", stats.FilesConverted,
		"unchanged", stats.FilesUnchanged,
		"failed", stats.Failed(),
		"total_tokens", stats.TotalTokens,
		"duration", stats.Duration)
	return stats, nil
}

// countJobs selects artifacts to (re)count: every hashed source whose artifact
// exists and was either converted this run or has no token entry yet
func countJobs(root string, hashes, converted map[string]string, prior map[string]int, conv types.DocxConverter) []tokens.Job {
	rels := storage.SortedKeys(hashes)
	var jobs []tokens.Job
	for _, rel := range rels {
		artifact, err := types.ArtifactPath(rel, conv)
		if err != nil {
			continue
		}
		_, justConverted := converted[rel]
		_, known := prior[artifact]
		if !justConverted && known {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(artifact))
		if !fileExists(abs) {
			continue
		}
		jobs = append(jobs, tokens.Job{Source: rel, Artifact: artifact, Path: abs})
	}
	return jobs
}

func (idx *Indexer) reportFailure(logger *slog.Logger, stats *Statistics, stage string, err error) {
	logger.Error(stage+" failed", "error", err)
	stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", stage, err))
}

func logPruned(logger *slog.Logger, before, after *storage.Index) {
	var removed []string
	for rel := range before.Hashes {
		if _, ok := after.Hashes[rel]; !ok {
			removed = append(removed, rel)
		}
	}
	sort.Strings(removed)
	for _, rel := range removed {
		logger.Info("pruned stale entry", "path", rel)
	}
}
