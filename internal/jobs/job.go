package jobs

import (
	"context"
	"errors"
	"time"
)

// Kind identifies which queue a job belongs to.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSummary       Kind = "summary"
)

// EventPrefix is the event type prefix for the kind.
func (k Kind) EventPrefix() string {
	return "episode_" + string(k)
}

// Status is the position of a job within its queue.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
)

// Job is one unit of queued episode work.
type Job struct {
	ID              string
	Kind            Kind
	MediaItemID     string
	ContainerID     string
	TargetID        string
	TargetTitle     string
	ContainerTitle  string
	CreatedAt       time.Time
	Status          Status
	ProgressPercent float64
	OperationToken  string
}

// JobView is the client representation of a Job.
type JobView struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	LibraryItemID   string  `json:"libraryItemId"`
	LibraryID       string  `json:"libraryId"`
	EpisodeID       string  `json:"episodeId"`
	EpisodeTitle    string  `json:"episodeTitle"`
	PodcastTitle    string  `json:"podcastTitle"`
	CreatedAt       string  `json:"createdAt"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progressPercent"`
}

// ToView converts a job into its client representation.
func ToView(job Job) JobView {
	view := JobView{
		ID:              job.ID,
		Kind:            string(job.Kind),
		LibraryItemID:   job.MediaItemID,
		LibraryID:       job.ContainerID,
		EpisodeID:       job.TargetID,
		EpisodeTitle:    job.TargetTitle,
		PodcastTitle:    job.ContainerTitle,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func eventData(job Job) map[string]any {
	return map[string]any{
		"jobId":         job.ID,
		"libraryItemId": job.MediaItemID,
		"libraryId":     job.ContainerID,
		"episodeId":     job.TargetID,
		"episodeTitle":  job.TargetTitle,
		"podcastTitle":  job.ContainerTitle,
	}
}

// Request asks a queue to process one episode.
type Request struct {
	EpisodeID string
	Force     bool
}

// Outcome is the result of a submission.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeQueued   Outcome = "queued"
	OutcomeRejected Outcome = "rejected"
	OutcomeExists   Outcome = "exists"
)

// SubmitResult reports what a queue did with a request. Position is the
// 1-based place among waiting jobs when Outcome is queued.
type SubmitResult struct {
	Outcome  Outcome `json:"outcome"`
	JobID    string  `json:"jobId,omitempty"`
	Position int     `json:"position,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// QueueView lists the waiting jobs of one library plus its running job.
type QueueView struct {
	Queue   []JobView `json:"queue"`
	Current *JobView  `json:"current"`
}

// Location reports where an episode sits in a queue.
type Location struct {
	Running  bool
	Position int
}

// ErrExists marks a request for work that is already done or in flight.
var ErrExists = errors.New("already exists")

// errAbandoned is the cancellation cause of a job dropped via Queue.Abandon.
var errAbandoned = errors.New("job abandoned")

// interrupted reports whether the job context ended because the queue is
// shutting down. Abandoned jobs are not interruptions.
func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), errAbandoned)
}
