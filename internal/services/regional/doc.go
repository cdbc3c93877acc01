// Package regional is the client for the regional film database: subject cast
// lists in the localized script, per-person detail carrying the IMDb bridge
// id, and subject search by title and year.
//
// Person detail responses are memoized in a bounded LRU because the same
// actors recur across a library and the detail endpoint is the most
// aggressively rate limited.
package regional
