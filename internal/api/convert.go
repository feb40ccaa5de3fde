package api

import (
	"time"

	"castscribe/internal/deps"
	"castscribe/internal/jobs"
	"castscribe/internal/preflight"
	"castscribe/internal/store"
)

// FromEpisode converts an episode record to its API representation.
func FromEpisode(episode *store.Episode) Episode {
	if episode == nil {
		return Episode{}
	}
	dto := Episode{
		ID:                     episode.ID,
		LibraryItemID:          episode.LibraryItemID,
		LibraryID:              episode.LibraryID,
		PodcastID:              episode.PodcastID,
		Title:                  episode.Title,
		PodcastTitle:           episode.PodcastTitle,
		AudioPath:              episode.AudioPath,
		HasTranscript:          episode.HasTranscript(),
		TranscriptionOperation: episode.TranscriptionOperation,
		CreatedAt:              formatTime(episode.CreatedAt),
		UpdatedAt:              formatTime(episode.UpdatedAt),
	}
	if dto.HasTranscript {
		dto.TranscriptSegments = len(episode.Transcript.TimedSegments())
		dto.TranscriptDuration = episode.Transcript.Duration()
	}
	return dto
}

// ToEpisode converts a registration request into a store record.
func ToEpisode(req EpisodeRequest) *store.Episode {
	return &store.Episode{
		ID:            req.ID,
		LibraryItemID: req.LibraryItemID,
		LibraryID:     req.LibraryID,
		PodcastID:     req.PodcastID,
		Title:         req.Title,
		PodcastTitle:  req.PodcastTitle,
		AudioPath:     req.AudioPath,
	}
}

// FromSummary converts a summary record to its API representation.
func FromSummary(summary *store.Summary) Summary {
	if summary == nil {
		return Summary{}
	}
	return Summary{
		ID:        summary.ID,
		EpisodeID: summary.EpisodeID,
		Summary:   summary.Summary,
		Format:    summary.Format,
		Status:    string(summary.Status),
		Error:     summary.Error,
		VectorIDs: summary.VectorIDs,
		CreatedAt: formatTime(summary.CreatedAt),
		UpdatedAt: formatTime(summary.UpdatedAt),
	}
}

// NewSummaryStatus merges the stored summary with the episode's queue
// location. A running or queued job reports "pending" even before the
// executor has saved its pending record.
func NewSummaryStatus(summary *store.Summary, loc jobs.Location) SummaryStatus {
	status := SummaryStatus{
		Status:                "none",
		IsQueued:              loc.Position > 0,
		IsCurrentlyProcessing: loc.Running,
		QueuePosition:         loc.Position,
	}
	if summary != nil {
		status.Status = string(summary.Status)
		status.Error = summary.Error
		status.UpdatedAt = formatTime(summary.UpdatedAt)
	}
	if loc.Running || loc.Position > 0 {
		status.Status = string(store.SummaryPending)
	}
	return status
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Path:        dep.Path,
			Detail:      dep.Detail,
		}
	}
	return out
}

// SummarizeQueue reports the waiting count and running job of a queue.
func SummarizeQueue(kind jobs.Kind, waiting int, current jobs.Job, running bool) QueueSummary {
	summary := QueueSummary{Kind: string(kind), Waiting: waiting}
	if running {
		view := jobs.ToView(current)
		summary.Current = &view
	}
	return summary
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
