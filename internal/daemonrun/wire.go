package daemonrun

import (
	"context"
	"log/slog"
	"time"

	"castscribe/internal/audio"
	"castscribe/internal/config"
	"castscribe/internal/daemon"
	"castscribe/internal/deps"
	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/media/ffprobe"
	"castscribe/internal/notifications"
	"castscribe/internal/preflight"
	"castscribe/internal/qa"
	"castscribe/internal/reaper"
	"castscribe/internal/retry"
	"castscribe/internal/services/chroma"
	"castscribe/internal/services/llm"
	"castscribe/internal/services/whisper"
	"castscribe/internal/store"
	"castscribe/internal/tasks"
	"castscribe/internal/transcript"
)

// eventBacklog bounds the replay buffer served by /api/events.
const eventBacklog = 1000

// Wire constructs the providers, queues and background loops for cfg and
// returns them as daemon dependencies. Nothing is started.
func Wire(cfg *config.Config, st *store.Store, logger *slog.Logger) daemon.Deps {
	bus := events.NewBus(eventBacklog)
	tracker := tasks.NewTracker(bus)
	notifier := notifications.NewService(cfg)

	chatCfg := llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.ChatModel,
		Temperature:    cfg.OpenAI.Temperature,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	}
	chat := llm.NewClient(chatCfg)
	embedder := llm.NewEmbedder(chatCfg, cfg.OpenAI.EmbeddingModel)

	passageCfg := chroma.Config{
		URL:             cfg.VectorStore.URL,
		AuthProvider:    cfg.VectorStore.AuthProvider,
		AuthCredentials: cfg.VectorStore.AuthCredentials,
		Tenant:          cfg.VectorStore.Tenant,
		Database:        cfg.VectorStore.Database,
		Collection:      cfg.VectorStore.Collection,
		TimeoutSeconds:  cfg.VectorStore.TimeoutSeconds,
	}
	summaryCfg := passageCfg
	summaryCfg.Collection = chroma.SummaryCollection
	passages := chroma.NewClient(passageCfg, embedder)
	summaryVectors := chroma.NewClient(summaryCfg, embedder)

	chunking := chunkOptions(cfg)
	answers := qa.NewService(passages, chat,
		qa.WithTopK(cfg.QA.TopK),
		qa.WithSimilarityThreshold(cfg.QA.SimilarityThreshold),
		qa.WithCacheTTL(cfg.QACacheTTL()),
		qa.WithChunkOptions(chunking),
		qa.WithLogger(logger),
	)

	summaryExec := jobs.NewSummaryExecutor(
		jobs.SummarySettings{Enabled: cfg.Summary.Enabled, Chunking: chunking},
		jobs.SummaryDeps{
			Store:     st,
			Vectors:   summaryVectors,
			Completer: chat,
			Notifier:  notifier,
			Logger:    logger,
		},
	)
	summaries := jobs.NewQueue(jobs.KindSummary, summaryExec,
		jobs.WithPublisher(bus),
		jobs.WithTasks(tracker),
		jobs.WithQueueLogger(logger),
	)

	transcriber := whisper.NewClient(whisper.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.TranscriptionModel,
		Language:       cfg.Transcription.Language,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	chunker := audio.NewChunker(cfg.Transcription.FFmpegBinary,
		ffprobe.Inspector{Binary: cfg.Transcription.FFprobeBinary},
		audio.WithMaxFileSize(cfg.MaxFileSizeBytes()),
		audio.WithTargetSize(cfg.TargetChunkBytes()),
		audio.WithSplitTimeout(cfg.SplitTimeout()),
		audio.WithLogger(logger),
	)
	transcriptionDeps := jobs.TranscriptionDeps{
		Store:       st,
		Transcriber: transcriber,
		Splitter:    chunker,
		Publisher:   bus,
		Notifier:    notifier,
		Logger:      logger,
	}
	if cfg.Transcription.AutoVectorize {
		transcriptionDeps.Vectorizer = answers
	}
	if cfg.Transcription.AutoSummarize {
		transcriptionDeps.Summaries = summaries
	}
	transcriptionExec := jobs.NewTranscriptionExecutor(jobs.TranscriptionSettings{
		Enabled:           cfg.Transcription.Enabled,
		MaxFailedAttempts: cfg.Transcription.MaxFailedAttempts,
		Retry:             retryPolicy(cfg),
		AutoVectorize:     cfg.Transcription.AutoVectorize,
		AutoSummarize:     cfg.Transcription.AutoSummarize,
	}, transcriptionDeps)
	transcriptions := jobs.NewQueue(jobs.KindTranscription, transcriptionExec,
		jobs.WithPublisher(bus),
		jobs.WithTasks(tracker),
		jobs.WithQueueLogger(logger),
	)

	sweeper := reaper.New(st, []reaper.Target{{
		Queue:       transcriptions,
		TokenPrefix: jobs.OperationTokenPrefix,
		EventPrefix: jobs.KindTranscription.EventPrefix(),
	}},
		reaper.WithPublisher(bus),
		reaper.WithLogger(logger),
		reaper.WithInterval(cfg.ReaperInterval()),
		reaper.WithStallThreshold(cfg.StallThreshold()),
	)

	return daemon.Deps{
		Store:          st,
		Transcriptions: transcriptions,
		Summaries:      summaries,
		QA:             answers,
		SummaryVectors: summaryVectors,
		Bus:            bus,
		Tasks:          tracker,
		Notifier:       notifier,
		Reaper:         sweeper,
		Preflight: func(ctx context.Context) []preflight.Result {
			return preflight.RunAll(ctx, cfg)
		},
		Dependencies: func() []deps.Status {
			return preflight.CheckSystemDeps(cfg)
		},
	}
}

func chunkOptions(cfg *config.Config) transcript.ChunkOptions {
	opts := transcript.DefaultChunkOptions()
	if cfg.Summary.TargetChunkChars > 0 {
		opts.TargetChars = cfg.Summary.TargetChunkChars
	}
	if cfg.Summary.MinChunkChars > 0 {
		opts.MinChars = cfg.Summary.MinChunkChars
	}
	if cfg.Summary.OverlapSentences >= 0 {
		opts.OverlapSentences = cfg.Summary.OverlapSentences
	}
	return opts
}

func retryPolicy(cfg *config.Config) retry.Policy {
	t := cfg.Transcription
	return retry.Policy{
		MaxRetries:   t.MaxRetries,
		InitialDelay: time.Duration(t.RetryDelayMS) * time.Millisecond,
		Multiplier:   t.RetryMultiplier,
		MaxDelay:     time.Duration(t.RetryMaxDelayMS) * time.Millisecond,
	}
}
