package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"castscribe/internal/services"
)

type stubEmbeddings struct {
	calls  int
	inputs [][]string
	err    error
}

func (s *stubEmbeddings) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.EmbeddingResponse{}, s.err
	}
	req := conv.Convert()
	inputs, _ := req.Input.([]string)
	s.inputs = append(s.inputs, inputs)
	resp := openai.EmbeddingResponse{}
	// Reverse order to prove results are placed by index.
	for i := len(inputs) - 1; i >= 0; i-- {
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: []float32{float32(len(inputs[i]))}})
	}
	return resp, nil
}

func TestEmbedKeepsInputOrder(t *testing.T) {
	stub := &stubEmbeddings{}
	embedder := NewEmbedder(Config{APIKey: "test"}, "", WithEmbeddingCreator(stub))

	vectors, err := embedder.Embed(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := []float32{1, 3, 2}
	for i, vec := range vectors {
		if len(vec) != 1 || vec[0] != want[i] {
			t.Fatalf("vector %d = %v, want %v", i, vec, want[i])
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected single batch, got %d calls", stub.calls)
	}
}

func TestEmbedClassifiesErrors(t *testing.T) {
	stub := &stubEmbeddings{err: &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}}
	embedder := NewEmbedder(Config{APIKey: "test"}, "text-embedding-3-small", WithEmbeddingCreator(stub))

	_, err := embedder.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	stub := &stubEmbeddings{}
	embedder := NewEmbedder(Config{APIKey: "test"}, "", WithEmbeddingCreator(stub))
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil result, got %v %v", vectors, err)
	}
	if stub.calls != 0 {
		t.Fatal("expected no API call for empty input")
	}
}
