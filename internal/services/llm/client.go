package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"castscribe/internal/services"
)

// Config captures the runtime settings required to talk to the chat model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

// chatCompleter is satisfied by *openai.Client.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ chatCompleter = (*openai.Client)(nil)

// Client issues chat completions against an OpenAI-compatible endpoint.
type Client struct {
	cfg  Config
	chat chatCompleter
}

// Option customizes the client.
type Option func(*Client)

// WithChatCompleter replaces the go-openai client (for tests).
func WithChatCompleter(chat chatCompleter) Option {
	return func(c *Client) {
		if chat != nil {
			c.chat = chat
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	client := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(client)
	}
	if client.chat == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		client.chat = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, timeout)
	}
	return client
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends prompt as a single user message and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "prompt required", nil)
	}
	req := c.newRequest([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	return c.complete(ctx, req, "complete")
}

// CompleteJSON issues a JSON-only chat completion request with the supplied
// prompts and returns the raw payload produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete json", "system prompt required", nil)
	}
	if userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete json", "user prompt required", nil)
	}
	req := c.newRequest([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	})
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	return c.complete(ctx, req, "complete json")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) newRequest(messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: requestTemperature(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	}
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest, operation string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", operation, "api key required", nil)
	}
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", ClassifyError("llm", operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "llm", operation, "empty choices", nil)
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		detail := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", choice.FinishReason, choice.Message.Refusal)
		return "", services.Wrap(services.ErrExternalTool, "llm", operation, detail, nil)
	}
	return content, nil
}

// requestTemperature keeps an explicit zero on the wire; go-openai omits a
// literal 0 and the API would fall back to its default of 1.
func requestTemperature(value float64) float32 {
	if value <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(value)
}
