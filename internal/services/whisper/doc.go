// Package whisper transcribes audio files through the OpenAI transcription API.
//
// Requests use the verbose_json response format so segment timings come back
// with the text. When the provider returns text without segments, the client
// degrades to a single segment spanning the reported duration.
//
// Errors are classified with llm.ClassifyError; IsRetryable tells the retry
// loop which failures are permanent.
package whisper
