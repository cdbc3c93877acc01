// Package workflow drives cast reconciliation for queued media items.
//
// A Processor handles one media item end to end: it fetches the server's
// current cast, the metadata API credits, and the regional cast (through a
// source.Chain), runs a reconcile session against an identity snapshot,
// applies the session's identity writes atomically, and writes the result
// back to the media server unless it matches what the server already has.
//
// The Manager drains the SQLite queue one item at a time under a process
// lock, so only one worker per data directory touches the identity store.
// Shutdown is observed between items; an item already started runs to
// completion. Failures are classified with services.FailureStatus and
// recorded on the item before the worker moves on.
package workflow
