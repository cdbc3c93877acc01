// Package source locates the regional database's cast list for a media item.
//
// Lookups run as an ordered Chain of Strategy values. A strategy that cannot
// find the subject returns services.ErrNotFound and the chain moves on; any
// other error stops the chain so rate limits and outages reach the caller.
package source
