// Package logging assembles structured slog loggers and formatting helpers used
// across castsync.
//
// It owns the configurable console/JSON handlers, rotates file output through
// lumberjack, and exposes context-aware helpers so reconciliation code can tag
// log lines with queue item IDs, media item IDs, phases, and session IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
