package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// OpenAI contains provider settings shared by transcription, summarization,
// embeddings, and question answering.
type OpenAI struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	TranscriptionModel string  `toml:"transcription_model"`
	ChatModel          string  `toml:"chat_model"`
	EmbeddingModel     string  `toml:"embedding_model"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	Temperature        float64 `toml:"temperature"`
	MaxTokens          int     `toml:"max_tokens"`
}

// Transcription contains settings for the transcription queue and audio chunking.
type Transcription struct {
	Enabled             bool    `toml:"enabled"`
	MaxFileSizeMB       int     `toml:"max_file_size_mb"`
	TargetChunkMB       int     `toml:"target_chunk_mb"`
	SplitTimeoutSeconds int     `toml:"split_timeout_seconds"`
	MaxRetries          int     `toml:"max_retries"`
	RetryDelayMS        int     `toml:"retry_delay_ms"`
	RetryMultiplier     float64 `toml:"retry_multiplier"`
	RetryMaxDelayMS     int     `toml:"retry_max_delay_ms"`
	MaxFailedAttempts   int     `toml:"max_failed_attempts"`
	AutoVectorize       bool    `toml:"auto_vectorize"`
	AutoSummarize       bool    `toml:"auto_summarize"`
	FFmpegBinary        string  `toml:"ffmpeg_binary"`
	FFprobeBinary       string  `toml:"ffprobe_binary"`
	// Language is an ISO 639-1 hint for the transcription model; empty
	// lets the model detect it.
	Language string `toml:"language"`
}

// Summary contains settings for the summary queue and transcript chunking.
type Summary struct {
	Enabled          bool `toml:"enabled"`
	TargetChunkChars int  `toml:"target_chunk_chars"`
	MinChunkChars    int  `toml:"min_chunk_chars"`
	OverlapSentences int  `toml:"overlap_sentences"`
}

// VectorStore contains connection settings for the Chroma vector database.
type VectorStore struct {
	URL             string `toml:"url"`
	AuthProvider    string `toml:"auth_provider"`
	AuthCredentials string `toml:"auth_credentials"`
	Tenant          string `toml:"tenant"`
	Database        string `toml:"database"`
	Collection      string `toml:"collection"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// QA contains settings for transcript question answering.
type QA struct {
	TopK                int     `toml:"top_k"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	CacheTTLSeconds     int     `toml:"cache_ttl_seconds"`
}

// Reaper contains settings for the stalled operation sweep.
type Reaper struct {
	IntervalSeconds       int `toml:"interval_seconds"`
	StallThresholdSeconds int `toml:"stall_threshold_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for castscribe.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, database file, and API bind address
//   - OpenAI: provider credentials and model names
//   - Transcription: queue policy, audio splitting, and retry backoff
//   - Summary: queue policy and transcript chunk sizing
//   - VectorStore: Chroma connection
//   - QA: retrieval depth, source dedup threshold, and answer cache
//   - Reaper: stall detection interval and threshold
//   - Notifications: ntfy push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	OpenAI        OpenAI        `toml:"openai"`
	Transcription Transcription `toml:"transcription"`
	Summary       Summary       `toml:"summary"`
	VectorStore   VectorStore   `toml:"vector_store"`
	QA            QA            `toml:"qa"`
	Reaper        Reaper        `toml:"reaper"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file or in the
// working directory is loaded first so secrets can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads optional .env files. Variables already present in the
// environment are never overwritten.
func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("castscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Paths.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.DatabasePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "castscribed.lock")
}

// MaxFileSizeBytes returns the transcription provider upload ceiling.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Transcription.MaxFileSizeMB) * 1024 * 1024
}

// TargetChunkBytes returns the size the audio splitter aims for per segment.
func (c *Config) TargetChunkBytes() int64 {
	return int64(c.Transcription.TargetChunkMB) * 1024 * 1024
}

// SplitTimeout returns the wall-clock limit for one ffmpeg split invocation.
func (c *Config) SplitTimeout() time.Duration {
	return time.Duration(c.Transcription.SplitTimeoutSeconds) * time.Second
}

// ReaperInterval returns how often the stall sweep runs.
func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.Reaper.IntervalSeconds) * time.Second
}

// StallThreshold returns the age after which an outstanding operation is considered stalled.
func (c *Config) StallThreshold() time.Duration {
	return time.Duration(c.Reaper.StallThresholdSeconds) * time.Second
}

// QACacheTTL returns the lifetime of cached answers.
func (c *Config) QACacheTTL() time.Duration {
	return time.Duration(c.QA.CacheTTLSeconds) * time.Second
}

// APIBaseURL returns the URL CLI clients use to reach the daemon.
func (c *Config) APIBaseURL() string {
	bind := strings.TrimSpace(c.Paths.APIBind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	return "http://" + bind
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
