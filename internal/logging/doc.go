// Package logging assembles structured slog loggers and formatting helpers used
// across castscribe services.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so executors can tag log lines with job IDs,
// queue kinds, and episode IDs. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
