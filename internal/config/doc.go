// Package config loads, normalizes, and validates castsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and OPENROUTER_API_KEY. Target scripts for the name normalizer
// are derived from the translation target language unless set explicitly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
