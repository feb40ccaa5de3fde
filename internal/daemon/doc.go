// Package daemon coordinates the long-running castscribe process.
//
// It wires the episode store, the transcription and summary queues, the stall
// reaper, the event bus and the Q&A service into a single lifecycle with
// flock-based locking to prevent multiple instances. The HTTP API served here
// is the only way clients reach a running daemon.
//
// Keep orchestration logic here: job semantics live in internal/jobs and the
// Q&A flow in internal/qa, while the daemon focuses on startup, shutdown and
// request routing.
package daemon
