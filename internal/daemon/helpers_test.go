package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"castscribe/internal/config"
	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/qa"
	"castscribe/internal/services"
	"castscribe/internal/store"
	"castscribe/internal/testsupport"
)

// gateExecutor prepares jobs from the store and blocks until cancelled.
type gateExecutor struct {
	store *store.Store
}

func (e gateExecutor) Prepare(ctx context.Context, req jobs.Request) (jobs.Job, error) {
	episode, err := e.store.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return jobs.Job{}, err
	}
	if episode == nil {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "test", "prepare", "episode not found", nil)
	}
	return jobs.Job{
		TargetID:       episode.ID,
		TargetTitle:    episode.Title,
		ContainerID:    episode.LibraryID,
		ContainerTitle: episode.PodcastTitle,
		MediaItemID:    episode.LibraryItemID,
	}, nil
}

func (gateExecutor) Execute(ctx context.Context, _ jobs.Job, _ jobs.Reporter) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeQA struct {
	mu         sync.Mutex
	answer     qa.Answer
	err        error
	questions  []string
	vectorized []string
}

func (f *fakeQA) Query(_ context.Context, question string, _ []string) (qa.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	if f.err != nil {
		return qa.Answer{}, f.err
	}
	return f.answer, nil
}

func (f *fakeQA) Vectorize(_ context.Context, episode *store.Episode, _, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorized = append(f.vectorized, episode.ID)
	return 4, nil
}

type recordingVectors struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *recordingVectors) DeleteIDs(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deleted = append(r.deleted, ids...)
	return nil
}

type harness struct {
	cfg            *config.Config
	store          *store.Store
	bus            *events.Bus
	transcriptions *jobs.Queue
	summaries      *jobs.Queue
	qa             *fakeQA
	vectors        *recordingVectors
	daemon         *Daemon
	server         *httptest.Server
	token          string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus(100)
	exec := gateExecutor{store: st}

	h := &harness{
		cfg:            cfg,
		store:          st,
		bus:            bus,
		transcriptions: jobs.NewQueue(jobs.KindTranscription, exec, jobs.WithPublisher(bus)),
		summaries:      jobs.NewQueue(jobs.KindSummary, exec, jobs.WithPublisher(bus)),
		qa:             &fakeQA{},
		vectors:        &recordingVectors{},
		token:          cfg.Paths.APIToken,
	}
	d, err := New(cfg, Deps{
		Store:          st,
		Transcriptions: h.transcriptions,
		Summaries:      h.summaries,
		QA:             h.qa,
		SummaryVectors: h.vectors,
		Bus:            bus,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.daemon = d
	h.server = httptest.NewServer(d.api.server.Handler)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
