// Package store persists podcast episodes and their summaries in SQLite.
//
// The Store manages the database connection, schema initialization, busy
// retries, and the narrow set of queries the job queues and the stall reaper
// need: episode upserts, transcript persistence, operation-token bookkeeping,
// and per-episode summary records. Transcripts are stored as JSON and decoded
// through transcript.Parse so older encodings keep loading.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt the new schema.
package store
