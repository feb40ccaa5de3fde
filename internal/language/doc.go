// Package language normalizes the transcription language setting to the
// ISO 639-1 code the transcription endpoint expects.
package language
