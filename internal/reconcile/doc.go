// Package reconcile merges the media server's current cast, the metadata API
// credits, and the regional database cast into one ordered, deduplicated cast
// list, and derives the identity store writes that keep people stable across
// runs.
//
// A session runs a fixed, forward-only list of phases:
//
//	adaptation -> exact_match -> regional_id_bridge -> deep_bridge ->
//	cap_and_reorder -> translate -> format
//
// Every phase reads the still-unmatched remainder left by the previous one.
// Pools are never mutated while scanned; matched entries are tracked in
// index sets.
//
// Identity lookups go through a session view (identity.Snapshot in
// production). Discoveries are overlaid on the view immediately and returned
// in Result.Writes; the caller applies them in one transaction after the
// session completes, so a failed session never leaves partial identity
// writes behind.
//
// Once the output reaches the configured cast size, the id-bridge phases are
// skipped for every remaining regional entry. Anything they could add would
// rank after the existing cast and be truncated anyway.
package reconcile
