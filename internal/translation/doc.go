// Package translation turns foreign-script cast names and character names
// into the target language, backed by a cache that outlives the process.
//
// Client.TranslateBatch is the single entry point used by reconciliation. It
// filters out text that needs no translation (already in a target script,
// acronym-like, or letterless), serves what it can from the Cache, and sends
// the remainder to an Engine in one batch. Results are written back to the
// cache. Missing keys in the returned map mean "keep the original".
//
// Cache scope is explicit: SQLiteCache persists across runs, MemoryCache is
// an LRU bounded per process, and Layered puts the second in front of the
// first.
//
// An Engine failure is never fatal: cached translations are still returned
// and the failure is logged.
package translation
