// Package qa answers questions about podcast content from vectorized
// transcripts.
//
// Vectorize chunks an episode transcript and replaces its passages in the
// vector store. Query retrieves the nearest passages for the caller's
// libraries, asks the chat model for a structured answer citing [HH:MM]
// timestamps, maps each cited segment back to its passage, and removes
// near-duplicate sources with FilterSources. Answers are cached briefly per
// question and library set; vectorizing any episode flushes the cache.
package qa
