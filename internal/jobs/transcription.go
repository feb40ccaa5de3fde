package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"castscribe/internal/events"
	"castscribe/internal/logging"
	"castscribe/internal/retry"
	"castscribe/internal/services"
	"castscribe/internal/services/whisper"
	"castscribe/internal/store"
	"castscribe/internal/transcript"
)

const (
	// MinSuccessfulChunks is the fewest chunk transcripts accepted as a
	// partial success.
	MinSuccessfulChunks = 1
	// DefaultMaxFailedAttempts caps transcription attempts per episode.
	DefaultMaxFailedAttempts = 5

	transcriptionStage = "transcription"
	tempChunkDirPrefix = ".temp_chunks-"
)

// TranscriptionSettings holds the feature flags and policies for
// transcription.
type TranscriptionSettings struct {
	Enabled           bool
	MaxFailedAttempts int
	Retry             retry.Policy
	AutoVectorize     bool
	AutoSummarize     bool
}

// TranscriptionDeps bundles the collaborators of a TranscriptionExecutor.
// Vectorizer, Summaries and Notifier are optional.
type TranscriptionDeps struct {
	Store       TranscriptionStore
	Transcriber Transcriber
	Splitter    Splitter
	Publisher   Publisher
	Notifier    Notifier
	Vectorizer  Vectorizer
	Summaries   Submitter
	Logger      *slog.Logger
}

// TranscriptionExecutor transcribes episode audio, splitting files above the
// provider ceiling.
type TranscriptionExecutor struct {
	settings TranscriptionSettings
	deps     TranscriptionDeps
	logger   *slog.Logger
	now      func() time.Time
	sleep    retry.Sleeper

	mu       sync.Mutex
	failures map[string]int
}

// TranscriptionOption customizes a TranscriptionExecutor.
type TranscriptionOption func(*TranscriptionExecutor)

// WithTranscriptionClock overrides the time source used for tokens.
func WithTranscriptionClock(now func() time.Time) TranscriptionOption {
	return func(e *TranscriptionExecutor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRetrySleeper replaces the backoff wait.
func WithRetrySleeper(sleep retry.Sleeper) TranscriptionOption {
	return func(e *TranscriptionExecutor) {
		e.sleep = sleep
	}
}

// NewTranscriptionExecutor constructs the transcription executor.
func NewTranscriptionExecutor(settings TranscriptionSettings, deps TranscriptionDeps, opts ...TranscriptionOption) *TranscriptionExecutor {
	if settings.MaxFailedAttempts <= 0 {
		settings.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	e := &TranscriptionExecutor{
		settings: settings,
		deps:     deps,
		logger:   logging.NewComponentLogger(deps.Logger, "transcription"),
		now:      time.Now,
		failures: make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// FailedAttempts reports the failure count recorded for an episode.
func (e *TranscriptionExecutor) FailedAttempts(episodeID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[episodeID]
}

// Prepare validates that transcription can run for the episode.
func (e *TranscriptionExecutor) Prepare(ctx context.Context, req Request) (Job, error) {
	if !e.settings.Enabled {
		return Job{}, services.Wrap(services.ErrPrecondition, transcriptionStage, "prepare", "transcriptions are disabled", nil)
	}
	episode, err := e.loadEpisode(ctx, req.EpisodeID)
	if err != nil {
		return Job{}, err
	}
	if strings.TrimSpace(episode.AudioPath) == "" {
		return Job{}, services.Wrap(services.ErrPrecondition, transcriptionStage, "prepare", "episode has no audio file", nil)
	}
	info, err := os.Stat(episode.AudioPath)
	if err != nil || info.IsDir() {
		return Job{}, services.Wrap(services.ErrPrecondition, transcriptionStage, "prepare",
			fmt.Sprintf("audio file does not exist at path %s", episode.AudioPath), nil)
	}
	if attempts := e.FailedAttempts(episode.ID); attempts >= e.settings.MaxFailedAttempts {
		return Job{}, services.Wrap(services.ErrPrecondition, transcriptionStage, "prepare",
			fmt.Sprintf("transcription failed %d times", attempts), nil)
	}
	return jobFor(episode), nil
}

// Execute transcribes the episode and stores the transcript.
func (e *TranscriptionExecutor) Execute(ctx context.Context, job Job, report Reporter) error {
	logger := logging.WithContext(ctx, e.logger)
	episode, err := e.loadEpisode(ctx, job.TargetID)
	if err != nil {
		return err
	}

	token := OperationToken(e.now(), episode.LibraryItemID, episode.ID)
	if err := e.deps.Store.SetTranscriptionOperation(ctx, episode.ID, token); err != nil {
		return fmt.Errorf("record operation token: %w", err)
	}
	report.SetOperationToken(token)

	tr, err := e.transcribe(ctx, logger, job, episode.AudioPath, report)
	if err == nil {
		err = e.deps.Store.SaveTranscript(ctx, episode.ID, tr)
	}
	if _, clearErr := e.deps.Store.ClearTranscriptionOperationIfMatch(context.WithoutCancel(ctx), episode.ID, token); clearErr != nil {
		logger.Warn("clear operation token failed",
			logging.Error(clearErr),
			logging.String(logging.FieldEventType, "operation_clear_failed"),
			logging.String(logging.FieldErrorHint, "the stall reaper will clear it"),
		)
	}
	if err != nil && interrupted(ctx) {
		logger.Info("transcription interrupted by shutdown", logging.Error(err))
		return err
	}
	if err != nil {
		attempts := e.recordFailure(episode.ID)
		logger.Error("transcription failed",
			logging.Error(err),
			logging.Int("failed_attempts", attempts),
			logging.String(logging.FieldEventType, "transcription_failed"),
			logging.String(logging.FieldErrorHint, "check the audio file and OpenAI credentials"),
		)
		e.notifyFailed(ctx, logger, episode, services.UserMessage(string(KindTranscription), err))
		return err
	}

	e.mu.Lock()
	delete(e.failures, episode.ID)
	e.mu.Unlock()

	episode.Transcript = tr
	e.deps.Publisher.Publish(events.Event{
		Type:      events.TypeItemUpdated,
		Scope:     episode.LibraryID,
		EpisodeID: episode.ID,
		Data: map[string]any{
			"libraryItemId": episode.LibraryItemID,
			"episodeId":     episode.ID,
			"hasTranscript": true,
		},
	})
	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.NotifyTranscriptionFinished(ctx, episode.Title, episode.PodcastTitle); err != nil {
			logger.Warn("transcription notification failed", logging.Error(err))
		}
	}
	e.followUp(ctx, logger, episode)
	return nil
}

func (e *TranscriptionExecutor) transcribe(ctx context.Context, logger *slog.Logger, job Job, path string, report Reporter) (*transcript.Transcript, error) {
	needsSplit, size, err := e.deps.Splitter.NeedsSplit(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, transcriptionStage, "inspect audio", "audio file unavailable", err)
	}
	if !needsSplit {
		logger.Info("transcribing audio directly", logging.Int64("size_bytes", size))
		tr, err := e.transcribeFile(ctx, logger, path)
		if err != nil {
			return nil, err
		}
		report.SetProgress(100)
		return tr, nil
	}

	logger.Info("audio exceeds upload ceiling; splitting", logging.Int64("size_bytes", size))
	tempDir := filepath.Join(filepath.Dir(path), tempChunkDirPrefix+job.ID)
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("remove chunk directory failed", logging.String("path", tempDir), logging.Error(err))
		}
	}()

	chunks, err := e.deps.Splitter.Split(ctx, path, tempDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, transcriptionStage, "split audio", "failed to split audio file into chunks", err)
	}
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, transcriptionStage, "split audio", "splitting produced no chunks", nil)
	}

	parts := make([]*transcript.Transcript, 0, len(chunks))
	var lastErr error
	for i, chunk := range chunks {
		report.SetProgress(float64(i) / float64(len(chunks)) * 100)
		logger.Info("transcribing chunk",
			logging.Int("chunk", i+1),
			logging.Int("total_chunks", len(chunks)),
		)
		tr, err := e.transcribeFile(ctx, logger, chunk)
		e.deps.Splitter.Cleanup([]string{chunk})
		if err != nil {
			lastErr = err
			logger.Warn("chunk transcription failed",
				logging.Int("chunk", i+1),
				logging.Error(err),
				logging.String(logging.FieldEventType, "chunk_failed"),
				logging.String(logging.FieldImpact, "chunk omitted from transcript"),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		parts = append(parts, tr)
	}

	if len(parts) < MinSuccessfulChunks {
		return nil, services.Wrap(services.ErrExternalTool, transcriptionStage, "transcribe chunks", "all chunks failed to transcribe", lastErr)
	}
	if failed := len(chunks) - len(parts); failed > 0 {
		logging.WarnWithContext(logger, "some chunks failed to transcribe", "partial_transcript",
			logging.Int("failed_chunks", failed),
			logging.Int("total_chunks", len(chunks)),
			logging.String(logging.FieldImpact, "transcript has gaps"),
		)
	}
	report.SetProgress(100)
	return transcript.Merge(parts), nil
}

func (e *TranscriptionExecutor) transcribeFile(ctx context.Context, logger *slog.Logger, path string) (*transcript.Transcript, error) {
	var lastErr error
	opts := []retry.Option{
		retry.WithLogger(logger),
		retry.WithOperation("transcribe " + filepath.Base(path)),
		retry.WithShouldRetry(whisper.IsRetryable),
	}
	if e.sleep != nil {
		opts = append(opts, retry.WithSleeper(e.sleep))
	}
	tr, ok := retry.Do(ctx, e.settings.Retry, func(ctx context.Context) (*transcript.Transcript, error) {
		tr, err := e.deps.Transcriber.Transcribe(ctx, path)
		if err != nil {
			lastErr = err
		}
		return tr, err
	}, opts...)
	if ok {
		return tr, nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, fmt.Errorf("failed to get transcript after retries: %w", lastErr)
}

func (e *TranscriptionExecutor) followUp(ctx context.Context, logger *slog.Logger, episode *store.Episode) {
	if e.settings.AutoVectorize && e.deps.Vectorizer != nil {
		if _, err := e.deps.Vectorizer.Vectorize(ctx, episode, episode.PodcastTitle, episode.LibraryID); err != nil {
			logger.Error("auto vectorize failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "auto_vectorize_failed"),
				logging.String(logging.FieldErrorHint, "run castscribe vectorize manually"),
			)
		}
	}
	if e.settings.AutoSummarize && e.deps.Summaries != nil {
		result, err := e.deps.Summaries.Submit(ctx, Request{EpisodeID: episode.ID})
		if err != nil {
			logger.Error("auto summarize failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "auto_summarize_failed"),
				logging.String(logging.FieldErrorHint, "run castscribe summarize manually"),
			)
			return
		}
		logger.Info("auto summary submitted", logging.String("outcome", string(result.Outcome)))
	}
}

func (e *TranscriptionExecutor) recordFailure(episodeID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[episodeID]++
	return e.failures[episodeID]
}

func (e *TranscriptionExecutor) notifyFailed(ctx context.Context, logger *slog.Logger, episode *store.Episode, reason string) {
	if e.deps.Notifier == nil {
		return
	}
	if err := e.deps.Notifier.NotifyTranscriptionFailed(context.WithoutCancel(ctx), episode.Title, reason); err != nil {
		logger.Warn("transcription failure notification failed", logging.Error(err))
	}
}

func (e *TranscriptionExecutor) loadEpisode(ctx context.Context, id string) (*store.Episode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, transcriptionStage, "load episode", "episode id is required", nil)
	}
	episode, err := e.deps.Store.GetEpisode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load episode: %w", err)
	}
	if episode == nil {
		return nil, services.Wrap(services.ErrNotFound, transcriptionStage, "load episode", fmt.Sprintf("episode %s not found", id), nil)
	}
	return episode, nil
}

func jobFor(episode *store.Episode) Job {
	return Job{
		MediaItemID:    episode.LibraryItemID,
		ContainerID:    episode.LibraryID,
		TargetID:       episode.ID,
		TargetTitle:    episode.Title,
		ContainerTitle: episode.PodcastTitle,
	}
}
