package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"castscribe/internal/services"
)

// maxEmbeddingBatch bounds inputs per embeddings request.
const maxEmbeddingBatch = 256

type embeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

var _ embeddingCreator = (*openai.Client)(nil)

// Embedder turns text into embedding vectors.
type Embedder struct {
	apiKey string
	model  string
	api    embeddingCreator
}

// EmbedderOption customizes an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbeddingCreator replaces the go-openai client (for tests).
func WithEmbeddingCreator(api embeddingCreator) EmbedderOption {
	return func(e *Embedder) {
		if api != nil {
			e.api = api
		}
	}
}

// NewEmbedder builds an Embedder for model using the same connection settings
// as the chat client.
func NewEmbedder(cfg Config, model string, opts ...EmbedderOption) *Embedder {
	model = strings.TrimSpace(model)
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	e := &Embedder{apiKey: strings.TrimSpace(cfg.APIKey), model: model}
	for _, opt := range opts {
		opt(e)
	}
	if e.api == nil {
		e.api = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	return e
}

// Embed returns one vector per input, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "embeddings", "embed", "api key required", nil)
	}
	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxEmbeddingBatch {
		end := min(start+maxEmbeddingBatch, len(texts))
		resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, ClassifyError("embeddings", "embed", err)
		}
		if len(resp.Data) != end-start {
			return nil, services.Wrap(services.ErrExternalTool, "embeddings", "embed",
				fmt.Sprintf("expected %d embeddings, got %d", end-start, len(resp.Data)), nil)
		}
		for i, item := range resp.Data {
			index := item.Index
			if index < 0 || index >= end-start {
				index = i
			}
			vectors[start+index] = item.Embedding
		}
	}
	return vectors, nil
}
