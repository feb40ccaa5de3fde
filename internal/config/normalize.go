package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"castscribe/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOpenAI()
	c.normalizeTranscription()
	c.normalizeSummary()
	c.normalizeVectorStore()
	c.normalizeQA()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CASTSCRIBE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		if value, ok := os.LookupEnv("OPENAI_BASE_URL"); ok && strings.TrimSpace(value) != "" {
			c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		} else {
			c.OpenAI.BaseURL = defaultOpenAIBaseURL
		}
	}
	c.OpenAI.TranscriptionModel = defaultIfBlank(c.OpenAI.TranscriptionModel, defaultTranscriptionModel)
	c.OpenAI.ChatModel = defaultIfBlank(c.OpenAI.ChatModel, defaultChatModel)
	c.OpenAI.EmbeddingModel = defaultIfBlank(c.OpenAI.EmbeddingModel, defaultEmbeddingModel)
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeoutSeconds
	}
	if c.OpenAI.MaxTokens <= 0 {
		c.OpenAI.MaxTokens = defaultMaxTokens
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	if t.MaxFileSizeMB <= 0 {
		t.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if t.TargetChunkMB <= 0 {
		t.TargetChunkMB = defaultTargetChunkMB
	}
	if t.SplitTimeoutSeconds <= 0 {
		t.SplitTimeoutSeconds = defaultSplitTimeoutSeconds
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}
	if t.RetryDelayMS < 0 {
		t.RetryDelayMS = defaultRetryDelayMS
	}
	if t.RetryMultiplier == 0 {
		t.RetryMultiplier = defaultRetryMultiplier
	}
	if t.RetryMaxDelayMS < 0 {
		t.RetryMaxDelayMS = 0
	}
	if t.MaxFailedAttempts <= 0 {
		t.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	t.FFmpegBinary = defaultIfBlank(t.FFmpegBinary, "ffmpeg")
	t.FFprobeBinary = defaultIfBlank(t.FFprobeBinary, "ffprobe")
	if code, ok := language.Normalize(t.Language); ok {
		t.Language = code
	}
}

func (c *Config) normalizeSummary() {
	s := &c.Summary
	if s.TargetChunkChars <= 0 {
		s.TargetChunkChars = defaultTargetChunkChars
	}
	if s.MinChunkChars <= 0 {
		s.MinChunkChars = defaultMinChunkChars
	}
	if s.OverlapSentences < 0 {
		s.OverlapSentences = 0
	}
}

func (c *Config) normalizeVectorStore() {
	v := &c.VectorStore
	v.URL = strings.TrimRight(strings.TrimSpace(v.URL), "/")
	if v.URL == "" || v.URL == defaultVectorStoreURL {
		if host, ok := os.LookupEnv("CHROMA_HOST"); ok && strings.TrimSpace(host) != "" {
			port := "8000"
			if value, ok := os.LookupEnv("CHROMA_PORT"); ok && strings.TrimSpace(value) != "" {
				port = strings.TrimSpace(value)
			}
			host = strings.TrimRight(strings.TrimSpace(host), "/")
			if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
				host = "http://" + host
			}
			v.URL = host + ":" + port
		}
	}
	if v.URL == "" {
		v.URL = defaultVectorStoreURL
	}
	if strings.TrimSpace(v.AuthProvider) == "" {
		if value, ok := os.LookupEnv("CHROMA_AUTH_PROVIDER"); ok {
			v.AuthProvider = value
		}
	}
	v.AuthProvider = strings.ToLower(defaultIfBlank(v.AuthProvider, defaultVectorStoreAuthProvider))
	v.AuthCredentials = strings.TrimSpace(v.AuthCredentials)
	if v.AuthCredentials == "" {
		if value, ok := os.LookupEnv("CHROMA_AUTH_CREDENTIALS"); ok {
			v.AuthCredentials = strings.TrimSpace(value)
		}
	}
	v.Tenant = defaultIfBlank(v.Tenant, defaultVectorTenant)
	v.Database = defaultIfBlank(v.Database, defaultVectorDatabase)
	v.Collection = defaultIfBlank(v.Collection, defaultCollection)
	if v.TimeoutSeconds <= 0 {
		v.TimeoutSeconds = defaultVectorTimeoutSeconds
	}
}

func (c *Config) normalizeQA() {
	if c.QA.TopK <= 0 {
		c.QA.TopK = defaultQATopK
	}
	if c.QA.SimilarityThreshold == 0 {
		c.QA.SimilarityThreshold = defaultSimilarityThreshold
	}
	if c.QA.CacheTTLSeconds < 0 {
		c.QA.CacheTTLSeconds = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultIfBlank(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
