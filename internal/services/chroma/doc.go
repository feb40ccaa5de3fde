// Package chroma talks to a Chroma vector database over its v1 REST API.
//
// Embeddings are computed client-side by an Embedder (llm.Embedder in
// production) so the server only stores and ranks vectors. The collection is
// created on first use with get_or_create and cosine distance, and its id is
// cached for the life of the client.
//
// Authentication follows the Chroma server settings: "basic" sends the
// credentials as HTTP basic auth ("user:password"), "token" sends them as a
// bearer token.
package chroma
