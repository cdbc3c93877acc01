// Package tmdb provides the minimal TMDB API client used by cast
// reconciliation.
//
// It fetches movie and TV credits, person details (with external ids and
// alternate names), and resolves a person from a bridge id through the
// /find endpoint. Bridge-id lookups are verified against caller-supplied names
// because the source data behind an external id is sometimes wrong, and a
// same-id-different-person hit would poison the identity store.
package tmdb
