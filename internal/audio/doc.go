// Package audio splits oversized episode audio into segments that fit under the
// transcription provider's upload ceiling.
//
// The Chunker probes the source bitrate, derives a segment duration that keeps
// each codec-copy segment below a target size, and verifies every produced file
// against the hard ceiling. When a codec-copy pass still produces an oversized
// segment, the Chunker discards the output and re-encodes to fixed-length mono
// MP3 segments at a reduced bitrate. Split never returns a partial chunk set.
package audio
