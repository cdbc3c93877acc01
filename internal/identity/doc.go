// Package identity persists the cross-source person identity table that links
// a media server person id to its TMDB, IMDb, and regional database ids.
//
// Records are merged, never deleted: an upsert locates the stored record by
// the first merge key that hits (local id, then metadata id, then national id,
// then regional id) and fills in whatever the partial adds. Non-empty values
// are never replaced with empty ones. An upsert that would attach an external
// id already owned by a different local person is recorded as a conflict
// instead of being merged.
//
// Reconciliation sessions read through a Snapshot and write through
// ApplyBatch so one item's discoveries land atomically.
package identity
