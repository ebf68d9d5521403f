// Package indexer coordinates the incremental document indexing pipeline.
//
// # Basic Usage
//
//	tok, _ := tokens.NewTiktoken(tokens.DefaultEncoding)
//	store := storage.NewCSVStore(root)
//	idx := indexer.New(store, tok, logger)
//
//	stats, err := idx.Run(ctx, &indexer.Config{Root: root})
//	if err != nil {
//	    return err
//	}
//	indexer.WriteSummary(os.Stdout, stats, storage.Location(store))
//
// # Pipeline
//
// Each run moves through fixed stages, and every stage finishes for all
// files before the next one starts:
//
//  1. Load: read the hash and token index tables
//  2. Discover: walk the root for PDF, email and DOCX sources
//  3. Hash: BLAKE2b-512 digest of every source (parallel)
//  4. Detect: select new sources, changed sources and sources whose
//     artifact is missing
//  5. Convert: run the external converter per source (parallel)
//  6. Count: token count of new or re-converted artifacts (parallel)
//  7. Prune: drop entries for sources and artifacts that no longer exist
//  8. Persist: rewrite both tables atomically
//
// # Failures
//
// A file that fails to hash, convert or count is logged and reported in
// Statistics; the rest of the run continues. What the hash index records for
// a changed file whose conversion failed is decided by FailedConversionPolicy.
// Only loading, an inaccessible root and persisting the index abort a run.
//
// # Watch Mode
//
// Watcher re-runs the pipeline when supported sources under the root change.
// Events are debounced and runs never overlap.
package indexer
