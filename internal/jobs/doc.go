// Package jobs runs episode transcription and summarization through
// single-worker FIFO queues.
//
// A Queue owns at most one running job and an ordered list of waiting jobs.
// Submissions are checked by the queue's Executor before anything is
// enqueued; failed preconditions come back as an explicit rejected outcome and
// leave no trace. One worker goroutine per queue starts the next waiting job
// whenever the running job finishes, fails, or is abandoned by the stall
// reaper. Lifecycle changes are published as <kind>_queued, _started,
// _finished, _error and _queue_cleared events.
//
// TranscriptionExecutor and SummaryExecutor carry the per-kind work:
// chunking oversized audio, retrying speech-to-text calls, merging partial
// transcripts, ingesting transcript chunks into the vector store, and refining
// a summary chunk by chunk.
package jobs
