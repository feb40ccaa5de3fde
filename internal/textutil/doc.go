// Package textutil provides text processing utilities for passage similarity
// and filename sanitization.
//
// The primary use cases are:
//   - Tokenizing transcript text into normalized word sets
//   - Computing Jaccard similarity between passages for source deduplication
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Tokenization applies NFKC normalization and Unicode case folding, then splits
// on any rune that is not a letter or digit, so punctuation never affects the
// comparison.
package textutil
