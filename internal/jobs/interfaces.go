package jobs

import (
	"context"

	"castscribe/internal/events"
	"castscribe/internal/services/chroma"
	"castscribe/internal/store"
	"castscribe/internal/transcript"
)

// Executor performs the work for one queue kind.
type Executor interface {
	// Prepare checks preconditions for req and describes the job to enqueue.
	// Errors classified as preconditions reject the request; ErrExists
	// reports work that is already done.
	Prepare(ctx context.Context, req Request) (Job, error)
	// Execute runs job to completion.
	Execute(ctx context.Context, job Job, report Reporter) error
}

// Reporter receives progress for the running job.
type Reporter interface {
	SetProgress(percent float64)
	SetOperationToken(token string)
}

// Publisher fans out lifecycle events.
type Publisher interface {
	Publish(event events.Event) events.Event
}

// TaskSink records user-visible task progress.
type TaskSink interface {
	Create(action, title, description string, data map[string]any) string
	SetProgress(id string, percent float64)
	Finish(id string)
	Fail(id, message string)
}

// Transcriber converts an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*transcript.Transcript, error)
}

// Splitter cuts oversized audio into provider-sized chunks.
type Splitter interface {
	NeedsSplit(path string) (bool, int64, error)
	Split(ctx context.Context, path, outputDir string) ([]string, error)
	Cleanup(paths []string)
}

// Completer produces a plain chat completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// VectorStore ingests transcript chunks.
type VectorStore interface {
	Upsert(ctx context.Context, docs []chroma.Document) error
	DeleteWhere(ctx context.Context, filter chroma.Filter) error
}

// Vectorizer indexes a transcribed episode for question answering.
type Vectorizer interface {
	Vectorize(ctx context.Context, episode *store.Episode, podcastTitle, libraryID string) (int, error)
}

// Submitter enqueues follow-up work.
type Submitter interface {
	Submit(ctx context.Context, req Request) (SubmitResult, error)
}

// Notifier pushes job completion notices.
type Notifier interface {
	NotifyTranscriptionFinished(ctx context.Context, episodeTitle, podcastTitle string) error
	NotifyTranscriptionFailed(ctx context.Context, episodeTitle, reason string) error
	NotifySummaryFinished(ctx context.Context, episodeTitle, podcastTitle string) error
	NotifySummaryFailed(ctx context.Context, episodeTitle, reason string) error
}

// TranscriptionStore is the episode persistence used by transcription.
type TranscriptionStore interface {
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	SetTranscriptionOperation(ctx context.Context, id, token string) error
	ClearTranscriptionOperationIfMatch(ctx context.Context, id, token string) (bool, error)
	SaveTranscript(ctx context.Context, id string, tr *transcript.Transcript) error
}

// SummaryStore is the episode and summary persistence used by summarization.
type SummaryStore interface {
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	GetSummary(ctx context.Context, episodeID string) (*store.Summary, error)
	SaveSummary(ctx context.Context, summary *store.Summary) (*store.Summary, error)
}

type noopTasks struct{}

func (noopTasks) Create(string, string, string, map[string]any) string { return "" }
func (noopTasks) SetProgress(string, float64)                          {}
func (noopTasks) Finish(string)                                        {}
func (noopTasks) Fail(string, string)                                  {}

type noopPublisher struct{}

func (noopPublisher) Publish(event events.Event) events.Event { return event }
