// Package queue persists media items awaiting cast reconciliation in SQLite
// and drives their lifecycle.
//
// Items move pending -> processing -> completed, or end in failed (retry on
// demand), deferred (retried automatically once next_attempt_at passes), or
// review (needs an operator). A media item has at most one active entry;
// enqueueing it again while active returns the existing item.
//
// The table lives in the shared castsync database; the schema is owned by the
// migrations in internal/database.
package queue
