// Package api defines wire-format types, converters and the HTTP client for
// the daemon API. It translates store records, queue views and preflight
// results into transport-friendly DTOs that the CLI and other consumers can
// render without coupling to internal types.
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds.
package api
