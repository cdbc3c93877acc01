// Package mediaserver talks to an Emby/Jellyfin compatible server: it reads an
// item's current cast and provider ids, and writes a reconciled cast back.
//
// Updates post the full item document the server returned, with only the
// People array replaced, because the server treats a partial body as a
// request to clear the missing fields.
package mediaserver
