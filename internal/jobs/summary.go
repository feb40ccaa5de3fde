package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"castscribe/internal/logging"
	"castscribe/internal/services"
	"castscribe/internal/services/chroma"
	"castscribe/internal/store"
	"castscribe/internal/transcript"
)

const summaryStage = "summary"

// SummarySettings holds the flags and chunk sizing for summarization.
type SummarySettings struct {
	Enabled  bool
	Chunking transcript.ChunkOptions
}

// SummaryDeps bundles the collaborators of a SummaryExecutor. Notifier is
// optional.
type SummaryDeps struct {
	Store     SummaryStore
	Vectors   VectorStore
	Completer Completer
	Notifier  Notifier
	Logger    *slog.Logger
}

// SummaryExecutor ingests transcript chunks and refines a summary across them.
type SummaryExecutor struct {
	settings SummarySettings
	deps     SummaryDeps
	logger   *slog.Logger
}

// NewSummaryExecutor constructs the summary executor.
func NewSummaryExecutor(settings SummarySettings, deps SummaryDeps) *SummaryExecutor {
	if settings.Chunking == (transcript.ChunkOptions{}) {
		settings.Chunking = transcript.DefaultChunkOptions()
	}
	return &SummaryExecutor{
		settings: settings,
		deps:     deps,
		logger:   logging.NewComponentLogger(deps.Logger, "summary"),
	}
}

// Prepare validates that a summary can be generated for the episode.
func (e *SummaryExecutor) Prepare(ctx context.Context, req Request) (Job, error) {
	if !e.settings.Enabled {
		return Job{}, services.Wrap(services.ErrPrecondition, summaryStage, "prepare", "summaries are disabled", nil)
	}
	episode, err := e.loadEpisode(ctx, req.EpisodeID)
	if err != nil {
		return Job{}, err
	}
	if !episode.HasTranscript() {
		return Job{}, services.Wrap(services.ErrPrecondition, summaryStage, "prepare", "episode transcript not found", nil)
	}
	if !req.Force {
		existing, err := e.deps.Store.GetSummary(ctx, episode.ID)
		if err != nil {
			return Job{}, fmt.Errorf("load summary: %w", err)
		}
		if existing != nil && (existing.Status == store.SummaryCompleted || existing.Status == store.SummaryPending) {
			return Job{}, fmt.Errorf("summary %s: %w", existing.Status, ErrExists)
		}
	}
	return jobFor(episode), nil
}

// Execute generates and stores the summary. Failures are persisted on the
// summary record before being returned.
func (e *SummaryExecutor) Execute(ctx context.Context, job Job, report Reporter) error {
	logger := logging.WithContext(ctx, e.logger)
	episode, err := e.loadEpisode(ctx, job.TargetID)
	if err != nil {
		return err
	}
	if _, err := e.deps.Store.SaveSummary(ctx, &store.Summary{EpisodeID: episode.ID, Status: store.SummaryPending}); err != nil {
		return fmt.Errorf("record pending summary: %w", err)
	}

	text, ids, err := e.summarize(ctx, logger, episode, report)
	if err != nil && interrupted(ctx) {
		logger.Info("summary interrupted by shutdown", logging.Error(err))
		if _, saveErr := e.deps.Store.SaveSummary(context.WithoutCancel(ctx), &store.Summary{
			EpisodeID: episode.ID,
			Status:    store.SummaryError,
			Error:     "summary interrupted by shutdown",
		}); saveErr != nil {
			logger.Error("record summary interruption failed", logging.Error(saveErr))
		}
		return err
	}
	if err != nil {
		message := services.UserMessage(string(KindSummary), err)
		logger.Error("summary generation failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "summary_failed"),
			logging.String(logging.FieldErrorHint, "check OpenAI and vector store connectivity"),
		)
		if _, saveErr := e.deps.Store.SaveSummary(context.WithoutCancel(ctx), &store.Summary{
			EpisodeID: episode.ID,
			Status:    store.SummaryError,
			Error:     message,
		}); saveErr != nil {
			logger.Error("record summary failure failed", logging.Error(saveErr))
		}
		if e.deps.Notifier != nil {
			if notifyErr := e.deps.Notifier.NotifySummaryFailed(context.WithoutCancel(ctx), episode.Title, message); notifyErr != nil {
				logger.Warn("summary failure notification failed", logging.Error(notifyErr))
			}
		}
		return err
	}

	if _, err := e.deps.Store.SaveSummary(ctx, &store.Summary{
		EpisodeID: episode.ID,
		Summary:   text,
		Status:    store.SummaryCompleted,
		VectorIDs: ids,
	}); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.NotifySummaryFinished(ctx, episode.Title, episode.PodcastTitle); err != nil {
			logger.Warn("summary notification failed", logging.Error(err))
		}
	}
	logger.Info("summary stored", logging.Int("chunks", len(ids)), logging.Int("summary_chars", len(text)))
	return nil
}

func (e *SummaryExecutor) summarize(ctx context.Context, logger *slog.Logger, episode *store.Episode, report Reporter) (string, []string, error) {
	tr := transcript.Normalize(episode.Transcript)
	chunks := transcript.ProcessIntoChunks(tr.TimedSegments(), e.settings.Chunking)
	if len(chunks) == 0 {
		return "", nil, services.Wrap(services.ErrValidation, summaryStage, "chunk transcript", "transcript produced no chunks", nil)
	}

	if err := e.deps.Vectors.DeleteWhere(ctx, chroma.Eq("episodeId", episode.ID)); err != nil {
		return "", nil, fmt.Errorf("delete existing chunks: %w", err)
	}
	ids := make([]string, 0, len(chunks))
	docs := make([]chroma.Document, 0, len(chunks))
	for i, chunk := range chunks {
		id := episode.ID + "_chunk_" + strconv.Itoa(i)
		ids = append(ids, id)
		docs = append(docs, chroma.Document{ID: id, Text: chunk.Text, Metadata: chunkMetadata(episode, chunk)})
	}
	if err := e.deps.Vectors.Upsert(ctx, docs); err != nil {
		return "", nil, fmt.Errorf("store transcript chunks: %w", err)
	}
	logger.Info("transcript chunks stored", logging.Int("chunks", len(docs)))

	var summary string
	for i, chunk := range chunks {
		prompt := summaryPrompt(chunk.Text)
		if i > 0 {
			prompt = refinePrompt(summary, chunk.Text)
		}
		result, err := e.deps.Completer.Complete(ctx, prompt)
		if err != nil {
			return "", nil, fmt.Errorf("generate summary (chunk %d of %d): %w", i+1, len(chunks), err)
		}
		if trimmed := strings.TrimSpace(result); trimmed != "" || i == 0 {
			summary = trimmed
		}
		report.SetProgress(float64(i+1) / float64(len(chunks)) * 100)
	}
	if summary == "" {
		return "", nil, services.Wrap(services.ErrExternalTool, summaryStage, "generate summary", "model returned an empty summary", nil)
	}
	return summary, ids, nil
}

func chunkMetadata(episode *store.Episode, chunk transcript.Chunk) map[string]any {
	meta := map[string]any{
		"episodeId":            episode.ID,
		"podcastId":            episode.PodcastID,
		"libraryId":            episode.LibraryID,
		"type":                 "transcript",
		"chunkIndex":           chunk.ChunkIndex,
		"totalChunks":          chunk.TotalChunks,
		"sentenceCount":        chunk.SentenceCount,
		"approximateCharCount": chunk.ApproxCharCount,
	}
	if chunk.StartTime != nil {
		meta["startTime"] = *chunk.StartTime
	}
	if chunk.EndTime != nil {
		meta["endTime"] = *chunk.EndTime
	}
	return meta
}

func (e *SummaryExecutor) loadEpisode(ctx context.Context, id string) (*store.Episode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, summaryStage, "load episode", "episode id is required", nil)
	}
	episode, err := e.deps.Store.GetEpisode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load episode: %w", err)
	}
	if episode == nil {
		return nil, services.Wrap(services.ErrNotFound, summaryStage, "load episode", fmt.Sprintf("episode %s not found", id), nil)
	}
	return episode, nil
}
