// Package storage persists the document index.
//
// The index is two independent key-value tables:
//   - hash index: source path -> hex content digest
//   - token index: converted artifact path -> token count
//
// Two IndexStore implementations exist. CSVStore writes .hash_index.csv and
// .token_index.csv under the root, each with a header row and rows sorted by
// file. SQLiteStorage keeps the same tables plus a run history in
// .docindex.db.
//
// # Basic Usage
//
//	store := storage.NewCSVStore(root)
//	idx, err := store.Load(ctx)   // empty index when the tables are absent
//	idx.Hashes["a.pdf"] = digest
//	idx.Tokens["a.pdf.md"] = 1234
//	err = store.Save(ctx, idx)
//
// # Crash Safety
//
// A Save either replaces a table completely or leaves the previous table in
// place. CSV tables are written to a temporary sibling and renamed; SQLite
// tables are replaced inside a single transaction.
//
// # Drivers
//
// The default build uses modernc.org/sqlite. Build with -tags cgo_sqlite to
// use github.com/mattn/go-sqlite3 instead.
package storage
