package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"castscribe/internal/config"
)

const userAgent = "castscribe/0.1.0"

// Service defines the notification surface exposed to the job queues.
type Service interface {
	NotifyTranscriptionFinished(ctx context.Context, episodeTitle, podcastTitle string) error
	NotifyTranscriptionFailed(ctx context.Context, episodeTitle, reason string) error
	NotifySummaryFinished(ctx context.Context, episodeTitle, podcastTitle string) error
	NotifySummaryFailed(ctx context.Context, episodeTitle, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyTranscriptionFinished(ctx context.Context, episodeTitle, podcastTitle string) error {
	return n.send(ctx, payload{
		title:   "castscribe - Transcribed",
		message: fmt.Sprintf("📝 Transcript ready: %s", describe(episodeTitle, podcastTitle)),
		tags:    []string{"castscribe", "transcription", "completed"},
	})
}

func (n *ntfyService) NotifyTranscriptionFailed(ctx context.Context, episodeTitle, reason string) error {
	return n.send(ctx, payload{
		title:    "castscribe - Transcription Failed",
		message:  failureMessage(episodeTitle, reason),
		tags:     []string{"castscribe", "transcription", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySummaryFinished(ctx context.Context, episodeTitle, podcastTitle string) error {
	return n.send(ctx, payload{
		title:   "castscribe - Summarized",
		message: fmt.Sprintf("📚 Summary ready: %s", describe(episodeTitle, podcastTitle)),
		tags:    []string{"castscribe", "summary", "completed"},
	})
}

func (n *ntfyService) NotifySummaryFailed(ctx context.Context, episodeTitle, reason string) error {
	return n.send(ctx, payload{
		title:    "castscribe - Summary Failed",
		message:  failureMessage(episodeTitle, reason),
		tags:     []string{"castscribe", "summary", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "castscribe - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"castscribe", "test"},
		priority: "low",
	})
}

func describe(episodeTitle, podcastTitle string) string {
	episodeTitle = strings.TrimSpace(episodeTitle)
	podcastTitle = strings.TrimSpace(podcastTitle)
	if podcastTitle == "" {
		return episodeTitle
	}
	return fmt.Sprintf("%s (%s)", episodeTitle, podcastTitle)
}

func failureMessage(episodeTitle, reason string) string {
	message := fmt.Sprintf("❌ %s", strings.TrimSpace(episodeTitle))
	if reason = strings.TrimSpace(reason); reason != "" {
		message += "\n" + reason
	}
	return message
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTranscriptionFinished(context.Context, string, string) error { return nil }
func (noopService) NotifyTranscriptionFailed(context.Context, string, string) error   { return nil }
func (noopService) NotifySummaryFinished(context.Context, string, string) error       { return nil }
func (noopService) NotifySummaryFailed(context.Context, string, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
