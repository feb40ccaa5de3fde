// Package transcript defines the persisted episode transcript shape and the
// pure algorithms that operate on it.
//
// Key pieces:
//   - Transcript, Result, Word, Segment: the JSON shape stored on an episode
//   - Parse/Normalize: converts legacy transcript encodings into Transcript
//   - Merge: stitches chunk-level transcripts into one timeline
//   - ProcessIntoChunks: sentence-accumulation chunking with overlap for
//     vector ingestion and refine summarization
package transcript
