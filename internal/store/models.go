package store

import (
	"time"

	"castscribe/internal/transcript"
)

// Episode is a podcast episode known to the pipeline.
type Episode struct {
	ID            string
	LibraryItemID string
	LibraryID     string
	PodcastID     string
	Title         string
	PodcastTitle  string
	AudioPath     string
	Transcript    *transcript.Transcript
	// TranscriptionOperation is non-empty while a transcription call is
	// outstanding. It embeds the creation time for stall detection.
	TranscriptionOperation string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasTranscript reports whether the episode carries transcript text.
func (e *Episode) HasTranscript() bool {
	return e != nil && !e.Transcript.Empty()
}

// SummaryStatus is the lifecycle state of a stored summary.
type SummaryStatus string

const (
	SummaryPending   SummaryStatus = "pending"
	SummaryCompleted SummaryStatus = "completed"
	SummaryError     SummaryStatus = "error"
)

// DefaultSummaryFormat is the only summary format produced today.
const DefaultSummaryFormat = "default"

// Summary is the stored summarization outcome for one episode.
type Summary struct {
	ID        string
	EpisodeID string
	Summary   string
	Format    string
	Status    SummaryStatus
	Error     string
	VectorIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
