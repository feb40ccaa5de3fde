package config

import (
	"errors"
	"fmt"

	"castscribe/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if err := c.validateQA(); err != nil {
		return err
	}
	if err := c.validateReaper(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if !c.Transcription.Enabled && !c.Summary.Enabled {
		return nil
	}
	if c.OpenAI.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("openai.api_key is required when transcription or summary is enabled. Set OPENAI_API_KEY or edit %s (create with 'castscribe config init')", defaultPath)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return errors.New("openai.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if err := ensurePositiveMap(map[string]int{
		"transcription.max_file_size_mb":      t.MaxFileSizeMB,
		"transcription.target_chunk_mb":       t.TargetChunkMB,
		"transcription.split_timeout_seconds": t.SplitTimeoutSeconds,
		"transcription.max_failed_attempts":   t.MaxFailedAttempts,
	}); err != nil {
		return err
	}
	if t.TargetChunkMB >= t.MaxFileSizeMB {
		return errors.New("transcription.target_chunk_mb must be smaller than transcription.max_file_size_mb")
	}
	if t.RetryMultiplier < 1 {
		return errors.New("transcription.retry_multiplier must be >= 1")
	}
	if _, ok := language.Normalize(t.Language); !ok {
		return fmt.Errorf("transcription.language %q is not a recognized language code", t.Language)
	}
	if t.RetryMaxDelayMS > 0 && t.RetryMaxDelayMS < t.RetryDelayMS {
		return errors.New("transcription.retry_max_delay_ms must be 0 (uncapped) or >= transcription.retry_delay_ms")
	}
	return nil
}

func (c *Config) validateSummary() error {
	if c.Summary.MinChunkChars > c.Summary.TargetChunkChars {
		return errors.New("summary.min_chunk_chars must not exceed summary.target_chunk_chars")
	}
	return nil
}

func (c *Config) validateQA() error {
	if c.QA.SimilarityThreshold <= 0 || c.QA.SimilarityThreshold > 1 {
		return errors.New("qa.similarity_threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateReaper() error {
	if c.Reaper.IntervalSeconds <= 0 {
		return errors.New("reaper.interval_seconds must be positive")
	}
	if c.Reaper.StallThresholdSeconds <= 0 {
		return errors.New("reaper.stall_threshold_seconds must be positive")
	}
	if c.Reaper.StallThresholdSeconds <= c.Reaper.IntervalSeconds {
		return errors.New("reaper.stall_threshold_seconds must be greater than reaper.interval_seconds")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
