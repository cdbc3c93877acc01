// Package services defines shared utilities consumed by the reconciliation
// workflow and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, media item IDs, stage names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (failed, deferred, review).
//
// The subpackages hold the HTTP clients for the media server, the metadata
// API, the regional database, and the LLM used for translation.
package services
