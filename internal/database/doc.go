// Package database opens the castsync SQLite file shared by the identity
// store, the translation cache, and the work queue.
//
// Schema changes live in migrations/ as goose SQL files and are applied by
// Open. Writers wrap their statements in RetryOnBusy so a second process
// reading the database (the CLI while the worker runs) does not surface
// transient SQLITE_BUSY errors.
package database
