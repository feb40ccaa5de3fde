package chroma

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"castscribe/internal/services"
)

// DefaultCollection is the collection holding transcript passages.
const DefaultCollection = "podcast_transcripts"

// SummaryCollection holds the chunks ingested while summarizing. Q&A passages
// live in DefaultCollection.
const SummaryCollection = "podcast_episodes"

const (
	defaultTimeout  = 30 * time.Second
	defaultTenant   = "default_tenant"
	defaultDatabase = "default_database"
)

// HTTPDoer describes the HTTP client used by the Chroma client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the connection settings for a Chroma server.
type Config struct {
	URL             string
	AuthProvider    string
	AuthCredentials string
	Tenant          string
	Database        string
	Collection      string
	TimeoutSeconds  int
}

// Client is a Chroma v2 REST client bound to one collection in one
// tenant/database pair.
type Client struct {
	baseURL    string
	authHeader string
	scopePath  string
	collection string
	embedder   Embedder
	http       HTTPDoer

	mu           sync.Mutex
	collectionID string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs a Chroma client that embeds text with embedder.
func NewClient(cfg Config, embedder Embedder, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = DefaultCollection
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		authHeader: authHeader(cfg.AuthProvider, cfg.AuthCredentials),
		scopePath:  scopePath(cfg.Tenant, cfg.Database),
		collection: collection,
		embedder:   embedder,
		http:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func scopePath(tenant, database string) string {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		tenant = defaultTenant
	}
	database = strings.TrimSpace(database)
	if database == "" {
		database = defaultDatabase
	}
	return "/api/v2/tenants/" + url.PathEscape(tenant) + "/databases/" + url.PathEscape(database) + "/collections"
}

func (c *Client) collectionPath(id, action string) string {
	return c.scopePath + "/" + url.PathEscape(id) + "/" + action
}

func authHeader(provider, credentials string) string {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "basic":
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
	case "token", "bearer":
		return "Bearer " + credentials
	default:
		return ""
	}
}

// Heartbeat verifies the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
}

// Upsert embeds docs and writes them to the collection.
func (c *Client) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if c.embedder == nil {
		return services.Wrap(services.ErrConfiguration, "chroma", "upsert", "embedder not configured", nil)
	}
	texts := make([]string, len(docs))
	payload := upsertRequest{
		IDs:       make([]string, len(docs)),
		Documents: texts,
		Metadatas: make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			return services.Wrap(services.ErrValidation, "chroma", "upsert", fmt.Sprintf("document %d has no id", i), nil)
		}
		payload.IDs[i] = doc.ID
		texts[i] = doc.Text
		payload.Metadatas[i] = cleanMetadata(doc.Metadata)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	payload.Embeddings = vectors

	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.collectionPath(id, "upsert"), payload, nil)
}

// Query returns up to topK documents nearest to text that match filter,
// ordered by ascending distance.
func (c *Client) Query(ctx context.Context, text string, filter Filter, topK int) ([]QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "chroma", "query", "query text required", nil)
	}
	if c.embedder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "chroma", "query", "embedder not configured", nil)
	}
	if topK <= 0 {
		topK = 3
	}
	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, services.Wrap(services.ErrExternalTool, "chroma", "query", "embedder returned no vector", nil)
	}

	id, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	payload := queryRequest{
		QueryEmbeddings: vectors,
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	if len(filter) > 0 {
		payload.Where = filter
	}
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath(id, "query"), payload, &resp); err != nil {
		return nil, err
	}
	return resp.results(), nil
}

// DeleteWhere removes every document matching filter.
func (c *Client) DeleteWhere(ctx context.Context, filter Filter) error {
	if len(filter) == 0 {
		return services.Wrap(services.ErrValidation, "chroma", "delete", "filter required", nil)
	}
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.collectionPath(id, "delete"), deleteRequest{Where: filter}, nil)
}

// DeleteIDs removes the listed documents.
func (c *Client) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.collectionPath(id, "delete"), deleteRequest{IDs: ids}, nil)
}

func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}
	var resp collectionResponse
	req := collectionRequest{
		Name:        c.collection,
		GetOrCreate: true,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
	}
	if err := c.do(ctx, http.MethodPost, c.scopePath, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrExternalTool, "chroma", "collection", "server returned no collection id", nil)
	}
	c.collectionID = resp.ID
	return c.collectionID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "chroma", path, "vector store url not configured", nil)
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("chroma encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build chroma request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "chroma", path, "request cancelled", err)
		}
		return services.Wrap(services.ErrTransient, "chroma", path, "request failed", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "chroma", path, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "chroma", path, detail, nil)
		case resp.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "chroma", path, detail, nil)
		default:
			return services.Wrap(services.ErrExternalTool, "chroma", path, detail, nil)
		}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "chroma", path, "decode response", err)
	}
	return nil
}

// cleanMetadata drops nil values, which Chroma rejects.
func cleanMetadata(meta map[string]any) map[string]any {
	cleaned := make(map[string]any, len(meta))
	for key, value := range meta {
		if value == nil {
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}

type collectionRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Where           Filter      `json:"where,omitempty"`
	Include         []string    `json:"include"`
}

type deleteRequest struct {
	IDs   []string `json:"ids,omitempty"`
	Where Filter   `json:"where,omitempty"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (r queryResponse) results() []QueryResult {
	if len(r.IDs) == 0 {
		return nil
	}
	ids := r.IDs[0]
	results := make([]QueryResult, 0, len(ids))
	for i, id := range ids {
		result := QueryResult{ID: id}
		if len(r.Documents) > 0 && i < len(r.Documents[0]) && r.Documents[0][i] != nil {
			result.Text = *r.Documents[0][i]
		}
		if len(r.Metadatas) > 0 && i < len(r.Metadatas[0]) {
			result.Metadata = r.Metadatas[0][i]
		}
		if len(r.Distances) > 0 && i < len(r.Distances[0]) {
			result.Distance = r.Distances[0][i]
		}
		results = append(results, result)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results
}
