package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"castscribe/internal/config"
	"castscribe/internal/deps"
	"castscribe/internal/services/chroma"
	"castscribe/internal/services/llm"
)

const (
	llmCheckTimeout    = 30 * time.Second
	vectorCheckTimeout = 5 * time.Second
)

// CheckOpenAI verifies that the chat API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckOpenAI(ctx context.Context, cfg config.OpenAI, opts ...llm.Option) Result {
	const name = "OpenAI"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.ChatModel,
		MaxTokens:      16,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...)

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", client.Model())}
}

// CheckVectorStore verifies the Chroma server answers its heartbeat.
func CheckVectorStore(ctx context.Context, cfg config.VectorStore, opts ...chroma.Option) Result {
	const name = "Vector store"
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, vectorCheckTimeout)
	defer cancel()

	client := chroma.NewClient(chroma.Config{
		URL:             url,
		AuthProvider:    cfg.AuthProvider,
		AuthCredentials: cfg.AuthCredentials,
		Tenant:          cfg.Tenant,
		Database:        cfg.Database,
		Collection:      cfg.Collection,
		TimeoutSeconds:  cfg.TimeoutSeconds,
	}, nil, opts...)
	if err := client.Heartbeat(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("heartbeat failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%s)", url)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries the audio splitter needs. Both the
// daemon and the CLI status command use this so the requirements list lives
// in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil || !cfg.Transcription.Enabled {
		return nil
	}
	return deps.Check(deps.AudioTools(cfg.Transcription.FFmpegBinary, cfg.Transcription.FFprobeBinary))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (OpenAI API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (OpenAI API unreachable)"
	}
	return err.Error()
}
