package api

import (
	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/qa"
	"castscribe/internal/tasks"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EpisodeRequest registers or updates an episode.
type EpisodeRequest struct {
	ID            string `json:"id"`
	LibraryItemID string `json:"libraryItemId"`
	LibraryID     string `json:"libraryId"`
	PodcastID     string `json:"podcastId"`
	Title         string `json:"title"`
	PodcastTitle  string `json:"podcastTitle"`
	AudioPath     string `json:"audioPath"`
}

// Episode describes a registered episode.
type Episode struct {
	ID                     string  `json:"id"`
	LibraryItemID          string  `json:"libraryItemId"`
	LibraryID              string  `json:"libraryId"`
	PodcastID              string  `json:"podcastId,omitempty"`
	Title                  string  `json:"title"`
	PodcastTitle           string  `json:"podcastTitle"`
	AudioPath              string  `json:"audioPath"`
	HasTranscript          bool    `json:"hasTranscript"`
	TranscriptSegments     int     `json:"transcriptSegments"`
	TranscriptDuration     float64 `json:"transcriptDurationSeconds,omitempty"`
	TranscriptionOperation string  `json:"transcriptionOperation,omitempty"`
	CreatedAt              string  `json:"createdAt,omitempty"`
	UpdatedAt              string  `json:"updatedAt,omitempty"`
}

// EpisodeResponse wraps a single episode.
type EpisodeResponse struct {
	Episode Episode `json:"episode"`
}

// Transcript carries the plain transcript text of an episode.
type Transcript struct {
	EpisodeID string `json:"episodeId"`
	Text      string `json:"text"`
}

// Summary describes a stored summary.
type Summary struct {
	ID        string   `json:"id"`
	EpisodeID string   `json:"episodeId"`
	Summary   string   `json:"summary"`
	Format    string   `json:"format"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	VectorIDs []string `json:"vectorIds,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// SummaryResponse wraps a single summary.
type SummaryResponse struct {
	Summary Summary `json:"summary"`
}

// SummaryStatus combines the stored summary state with queue placement.
// Status is "none" when no summary exists and nothing is queued.
type SummaryStatus struct {
	Status                string `json:"status"`
	IsQueued              bool   `json:"isQueued"`
	IsCurrentlyProcessing bool   `json:"isCurrentlyProcessing"`
	QueuePosition         int    `json:"queuePosition"`
	Error                 string `json:"error,omitempty"`
	UpdatedAt             string `json:"updatedAt,omitempty"`
}

// DeleteSummaryResponse reports whether a summary was removed.
type DeleteSummaryResponse struct {
	Deleted        bool `json:"deleted"`
	VectorsDeleted int  `json:"vectorsDeleted"`
}

// SubmitResponse is the outcome of a transcription or summary request.
type SubmitResponse = jobs.SubmitResult

// QueueResponse lists one library's jobs for a queue.
type QueueResponse = jobs.QueueView

// ClearQueueResponse reports how many waiting jobs were removed.
type ClearQueueResponse struct {
	Cleared int `json:"cleared"`
}

// QueryRequest asks a question against transcripts of the given libraries.
type QueryRequest struct {
	Query      string   `json:"query"`
	LibraryIDs []string `json:"libraryIds"`
}

// QueryResponse is the grounded answer.
type QueryResponse = qa.Answer

// VectorizeResponse reports how many passages were indexed.
type VectorizeResponse struct {
	EpisodeID string `json:"episodeId"`
	Chunks    int    `json:"chunks"`
}

// EventsResponse carries buffered events after a cursor.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   int64          `json:"next"`
}

// TasksResponse lists tracked tasks.
type TasksResponse struct {
	Tasks []tasks.Task `json:"tasks"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// QueueSummary summarizes one queue for status displays.
type QueueSummary struct {
	Kind    string        `json:"kind"`
	Waiting int           `json:"waiting"`
	Current *jobs.JobView `json:"current,omitempty"`
}

// DaemonStatus aggregates runtime information for the status endpoint.
type DaemonStatus struct {
	Running          bool               `json:"running"`
	PID              int                `json:"pid"`
	DatabasePath     string             `json:"databasePath"`
	LockFilePath     string             `json:"lockFilePath"`
	StartedAt        string             `json:"startedAt,omitempty"`
	Queues           []QueueSummary     `json:"queues"`
	SummaryStats     map[string]int     `json:"summaryStats,omitempty"`
	EventSubscribers int                `json:"eventSubscribers"`
	Checks           []CheckResult      `json:"checks,omitempty"`
	Dependencies     []DependencyStatus `json:"dependencies,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// MessageResponse carries a human readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
