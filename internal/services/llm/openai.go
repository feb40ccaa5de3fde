package llm

import (
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultHTTPTimeout = 5 * time.Minute

// NewOpenAIClient builds a go-openai client for apiKey and baseURL. An empty
// baseURL keeps the library default.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		cfg.BaseURL = trimmed
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}
