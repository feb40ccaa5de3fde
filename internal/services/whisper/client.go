package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"castscribe/internal/services"
	"castscribe/internal/services/llm"
	"castscribe/internal/transcript"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = openai.Whisper1

// Config captures the settings required to call the transcription endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// audioTranscriber is satisfied by *openai.Client.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

var _ audioTranscriber = (*openai.Client)(nil)

// Client transcribes one audio file per call.
type Client struct {
	cfg Config
	api audioTranscriber
}

// Option customizes the client.
type Option func(*Client)

// WithAudioTranscriber replaces the go-openai client (for tests).
func WithAudioTranscriber(api audioTranscriber) Option {
	return func(c *Client) {
		if api != nil {
			c.api = api
		}
	}
}

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(client)
	}
	if client.api == nil {
		client.api = llm.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	return client
}

// Model returns the configured model name for logging.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Transcribe uploads path and returns its timed transcript.
func (c *Client) Transcribe(ctx context.Context, path string) (*transcript.Transcript, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "whisper", "transcribe", "api key required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "whisper", "transcribe", fmt.Sprintf("audio file %q not found", path), err)
		}
		return nil, services.Wrap(services.ErrValidation, "whisper", "transcribe", "stat audio file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "whisper", "transcribe", fmt.Sprintf("%q is a directory", path), nil)
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.Model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: c.cfg.Language,
	})
	if err != nil {
		return nil, llm.ClassifyError("whisper", "transcribe", err)
	}
	result := fromResponse(resp)
	if result.Empty() {
		return nil, services.Wrap(services.ErrExternalTool, "whisper", "transcribe", "provider returned no text", nil)
	}
	return result, nil
}

// IsRetryable reports whether a Transcribe error is worth another attempt.
func IsRetryable(err error) bool {
	if errors.Is(err, services.ErrNotFound) {
		return false
	}
	return llm.IsRetryable(err)
}

func fromResponse(resp openai.AudioResponse) *transcript.Transcript {
	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Text: text, Start: seg.Start, End: seg.End})
	}
	if len(segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			segments = append(segments, transcript.Segment{Text: text, Start: 0, End: resp.Duration})
		}
	}
	return transcript.FromSegments(segments)
}
