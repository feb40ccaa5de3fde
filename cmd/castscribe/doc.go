// Package main hosts the castscribe CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP calls
// against the daemon API: episode registration, transcription and summary
// requests, queue inspection, and transcript questions. It also runs the
// daemon in the foreground and scaffolds configuration files.
//
// Keep this package lean: add new functionality to the internal packages and
// the daemon API first, then surface it through commands or flags here.
package main
