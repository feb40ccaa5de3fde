package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultClientTimeout = 2 * time.Minute

// Error is returned for non-2xx daemon responses.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned http %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned http %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for the daemon at baseURL. A non-empty token is
// sent as a bearer credential.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the daemon address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// AddEpisode registers or updates an episode.
func (c *Client) AddEpisode(ctx context.Context, req EpisodeRequest) (Episode, error) {
	var resp EpisodeResponse
	err := c.do(ctx, http.MethodPost, "/api/episodes", req, &resp)
	return resp.Episode, err
}

// Episode fetches one episode.
func (c *Client) Episode(ctx context.Context, id string) (Episode, error) {
	var resp EpisodeResponse
	err := c.do(ctx, http.MethodGet, episodePath(id, ""), nil, &resp)
	return resp.Episode, err
}

// Transcript fetches the plain transcript text of an episode.
func (c *Client) Transcript(ctx context.Context, id string) (Transcript, error) {
	var resp Transcript
	err := c.do(ctx, http.MethodGet, episodePath(id, "/transcript"), nil, &resp)
	return resp, err
}

// Transcribe requests transcription of an episode.
func (c *Client) Transcribe(ctx context.Context, id string) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, episodePath(id, "/transcribe"), nil, &resp)
	return resp, err
}

// Summarize requests a summary of an episode.
func (c *Client) Summarize(ctx context.Context, id string, force bool) (SubmitResponse, error) {
	path := episodePath(id, "/summary")
	if force {
		path += "?force=1"
	}
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, path, nil, &resp)
	return resp, err
}

// Summary fetches the stored summary of an episode.
func (c *Client) Summary(ctx context.Context, id string) (Summary, error) {
	var resp SummaryResponse
	err := c.do(ctx, http.MethodGet, episodePath(id, "/summary"), nil, &resp)
	return resp.Summary, err
}

// SummaryStatus fetches the summary state and queue placement of an episode.
func (c *Client) SummaryStatus(ctx context.Context, id string) (SummaryStatus, error) {
	var resp SummaryStatus
	err := c.do(ctx, http.MethodGet, episodePath(id, "/summary/status"), nil, &resp)
	return resp, err
}

// DeleteSummary removes the stored summary and its vectors.
func (c *Client) DeleteSummary(ctx context.Context, id string) (DeleteSummaryResponse, error) {
	var resp DeleteSummaryResponse
	err := c.do(ctx, http.MethodDelete, episodePath(id, "/summary"), nil, &resp)
	return resp, err
}

// Queue lists one library's jobs for the queue named by kind.
func (c *Client) Queue(ctx context.Context, kind, libraryID string) (QueueResponse, error) {
	segment, err := queueSegment(kind)
	if err != nil {
		return QueueResponse{}, err
	}
	var resp QueueResponse
	err = c.do(ctx, http.MethodGet, "/api/libraries/"+url.PathEscape(libraryID)+"/"+segment, nil, &resp)
	return resp, err
}

// ClearQueue removes waiting jobs. An empty libraryID clears every library.
func (c *Client) ClearQueue(ctx context.Context, kind, libraryID string) (ClearQueueResponse, error) {
	segment, err := queueSegment(kind)
	if err != nil {
		return ClearQueueResponse{}, err
	}
	path := "/api/" + segment + "/queue"
	if trimmed := strings.TrimSpace(libraryID); trimmed != "" {
		path += "?library=" + url.QueryEscape(trimmed)
	}
	var resp ClearQueueResponse
	err = c.do(ctx, http.MethodDelete, path, nil, &resp)
	return resp, err
}

// Ask queries transcripts of the given libraries.
func (c *Client) Ask(ctx context.Context, question string, libraryIDs []string) (QueryResponse, error) {
	var resp QueryResponse
	err := c.do(ctx, http.MethodPost, "/api/transcripts/query", QueryRequest{Query: question, LibraryIDs: libraryIDs}, &resp)
	return resp, err
}

// Vectorize indexes an episode's transcript for Q&A.
func (c *Client) Vectorize(ctx context.Context, id string) (VectorizeResponse, error) {
	var resp VectorizeResponse
	err := c.do(ctx, http.MethodPost, episodePath(id, "/vectorize"), nil, &resp)
	return resp, err
}

// Events fetches buffered events after since.
func (c *Client) Events(ctx context.Context, since int64) (EventsResponse, error) {
	var resp EventsResponse
	err := c.do(ctx, http.MethodGet, "/api/events?since="+strconv.FormatInt(since, 10), nil, &resp)
	return resp, err
}

// Tasks lists tracked tasks.
func (c *Client) Tasks(ctx context.Context) (TasksResponse, error) {
	var resp TasksResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &resp)
	return resp, err
}

// TestNotification asks the daemon to push a test notification.
func (c *Client) TestNotification(ctx context.Context) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr ErrorResponse
		if json.Unmarshal(payload, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(payload))
		}
		return &Error{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func episodePath(id, suffix string) string {
	return "/api/episodes/" + url.PathEscape(id) + suffix
}

func queueSegment(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "transcription", "transcriptions":
		return "transcriptions", nil
	case "summary", "summaries":
		return "summaries", nil
	default:
		return "", fmt.Errorf("unknown queue kind %q (want transcription or summary)", kind)
	}
}
