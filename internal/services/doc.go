// Package services defines shared utilities consumed by the job executors and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, episode IDs, queue kinds, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the Classify and
//     UserMessage helpers that turn failures into the categorized text shown
//     to clients.
//
// Provider adapters live in subpackages (whisper, llm, chroma) and tag their
// failures with the markers defined here.
package services
