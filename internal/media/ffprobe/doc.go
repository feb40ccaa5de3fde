// Package ffprobe wraps the ffprobe CLI to inspect audio files.
//
// Inspect runs ffprobe with JSON output and decodes the container format and
// stream list. Helpers on Result expose duration, size, and the bitrate the
// audio splitter uses to size its segments, falling back to the first audio
// stream when the container omits one.
package ffprobe
