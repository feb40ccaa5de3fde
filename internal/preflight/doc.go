// Package preflight provides readiness checks for the external services
// and filesystem paths castscribe depends on.
//
// The daemon runs RunAll at startup and logs failures without aborting, so a
// temporarily unreachable vector store does not block transcription. The CLI
// "castscribe status" command uses the same checks to display service health.
//
// Each provider check is gated by its config toggle; disabled features are
// reported as skipped.
package preflight
