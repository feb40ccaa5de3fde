package config

const (
	defaultConfigPath              = "~/.config/castscribe/config.toml"
	defaultDataDir                 = "~/.local/share/castscribe"
	defaultDatabaseName            = "castscribe.db"
	defaultAPIBind                 = "127.0.0.1:7491"
	defaultOpenAIBaseURL           = "https://api.openai.com/v1"
	defaultTranscriptionModel      = "whisper-1"
	defaultChatModel               = "gpt-4o-mini"
	defaultEmbeddingModel          = "text-embedding-3-small"
	defaultOpenAITimeoutSeconds    = 300
	defaultMaxTokens               = 500
	defaultMaxFileSizeMB           = 25
	defaultTargetChunkMB           = 20
	defaultSplitTimeoutSeconds     = 600
	defaultMaxRetries              = 3
	defaultRetryDelayMS            = 5000
	defaultRetryMultiplier         = 1.5
	defaultMaxFailedAttempts       = 5
	defaultTargetChunkChars        = 1500
	defaultMinChunkChars           = 1000
	defaultOverlapSentences        = 2
	defaultVectorStoreURL          = "http://localhost:8000"
	defaultVectorStoreAuthProvider = "basic"
	defaultCollection              = "podcast_transcripts"
	defaultVectorTenant            = "default_tenant"
	defaultVectorDatabase          = "default_database"
	defaultVectorTimeoutSeconds    = 30
	defaultQATopK                  = 3
	defaultSimilarityThreshold     = 0.5
	defaultQACacheTTLSeconds       = 300
	defaultReaperIntervalSeconds   = 60
	defaultStallThresholdSeconds   = 3600
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		OpenAI: OpenAI{
			BaseURL:            defaultOpenAIBaseURL,
			TranscriptionModel: defaultTranscriptionModel,
			ChatModel:          defaultChatModel,
			EmbeddingModel:     defaultEmbeddingModel,
			TimeoutSeconds:     defaultOpenAITimeoutSeconds,
			MaxTokens:          defaultMaxTokens,
		},
		Transcription: Transcription{
			Enabled:             true,
			MaxFileSizeMB:       defaultMaxFileSizeMB,
			TargetChunkMB:       defaultTargetChunkMB,
			SplitTimeoutSeconds: defaultSplitTimeoutSeconds,
			MaxRetries:          defaultMaxRetries,
			RetryDelayMS:        defaultRetryDelayMS,
			RetryMultiplier:     defaultRetryMultiplier,
			MaxFailedAttempts:   defaultMaxFailedAttempts,
			FFmpegBinary:        "ffmpeg",
			FFprobeBinary:       "ffprobe",
		},
		Summary: Summary{
			Enabled:          true,
			TargetChunkChars: defaultTargetChunkChars,
			MinChunkChars:    defaultMinChunkChars,
			OverlapSentences: defaultOverlapSentences,
		},
		VectorStore: VectorStore{
			URL:            defaultVectorStoreURL,
			AuthProvider:   defaultVectorStoreAuthProvider,
			Tenant:         defaultVectorTenant,
			Database:       defaultVectorDatabase,
			Collection:     defaultCollection,
			TimeoutSeconds: defaultVectorTimeoutSeconds,
		},
		QA: QA{
			TopK:                defaultQATopK,
			SimilarityThreshold: defaultSimilarityThreshold,
			CacheTTLSeconds:     defaultQACacheTTLSeconds,
		},
		Reaper: Reaper{
			IntervalSeconds:       defaultReaperIntervalSeconds,
			StallThresholdSeconds: defaultStallThresholdSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
