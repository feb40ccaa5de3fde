// Package llm wraps the OpenAI-compatible chat and embeddings APIs used for
// episode summaries, transcript question answering, and vector embeddings.
//
// # Entry Points
//
// NewClient: construct a chat client from Config.
// Client.Complete: single user prompt, returns the trimmed completion.
// Client.CompleteJSON: system/user prompts with a JSON response format.
// Client.HealthCheck: verify the API key and model are usable.
// NewEmbedder / Embedder.Embed: batch text embeddings for the vector store.
// DecodeJSON: tolerant decoding of model JSON (code fences, leading prose).
// ClassifyError: map provider failures onto the services error taxonomy.
//
// Calls are not retried here. The transcription adapter applies its own
// backoff; summary and Q&A failures surface immediately.
package llm
