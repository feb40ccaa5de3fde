package jobs_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"castscribe/internal/jobs"
	"castscribe/internal/services"
	"castscribe/internal/services/chroma"
	"castscribe/internal/store"
	"castscribe/internal/testsupport"
	"castscribe/internal/transcript"
)

type memoryVectors struct {
	docs    []chroma.Document
	deleted []chroma.Filter
	err     error
}

func (m *memoryVectors) Upsert(_ context.Context, docs []chroma.Document) error {
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memoryVectors) DeleteWhere(_ context.Context, filter chroma.Filter) error {
	m.deleted = append(m.deleted, filter)
	return nil
}

type scriptedCompleter struct {
	prompts []string
	err     error
	onCall  func()
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.onCall != nil {
		s.onCall()
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "  summary " + string(rune('A'+len(s.prompts)-1)) + "\n", nil
}

type summaryFixture struct {
	st        *store.Store
	vectors   *memoryVectors
	completer *scriptedCompleter
	notifier  *fakeNotifier
	exec      *jobs.SummaryExecutor
}

func newSummaryFixture(t *testing.T, enabled bool) *summaryFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &summaryFixture{
		st:        testsupport.MustOpenStore(t, cfg),
		vectors:   &memoryVectors{},
		completer: &scriptedCompleter{},
		notifier:  &fakeNotifier{},
	}
	f.exec = jobs.NewSummaryExecutor(jobs.SummarySettings{
		Enabled:  enabled,
		Chunking: transcript.ChunkOptions{TargetChars: 30, MinChars: 20, OverlapSentences: 0},
	}, jobs.SummaryDeps{
		Store:     f.st,
		Vectors:   f.vectors,
		Completer: f.completer,
		Notifier:  f.notifier,
	})
	return f
}

func (f *summaryFixture) execute(t *testing.T, req jobs.Request) error {
	t.Helper()
	job, err := f.exec.Prepare(context.Background(), req)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return f.exec.Execute(context.Background(), job, &recordingReporter{})
}

func TestSummaryRefinesAcrossChunks(t *testing.T) {
	f := newSummaryFixture(t, true)
	testsupport.NewTranscribedEpisode(t, f.st, "ep-1",
		"The hosts open the show with news.",
		"They interview a rocket engineer.",
		"Listeners send in their questions.",
	)

	if err := f.execute(t, jobs.Request{EpisodeID: "ep-1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(f.vectors.deleted) != 1 {
		t.Fatalf("expected existing chunks to be deleted first")
	}
	if len(f.vectors.docs) != 3 {
		t.Fatalf("stored %d chunks, want 3", len(f.vectors.docs))
	}
	for i, doc := range f.vectors.docs {
		if want := "ep-1_chunk_" + string(rune('0'+i)); doc.ID != want {
			t.Fatalf("chunk id = %s, want %s", doc.ID, want)
		}
		if doc.Metadata["episodeId"] != "ep-1" || doc.Metadata["type"] != "transcript" || doc.Metadata["totalChunks"] != 3 {
			t.Fatalf("chunk metadata = %v", doc.Metadata)
		}
	}

	if len(f.completer.prompts) != 3 {
		t.Fatalf("completer calls = %d", len(f.completer.prompts))
	}
	if strings.Contains(f.completer.prompts[0], "EXISTING SUMMARY") || !strings.Contains(f.completer.prompts[0], "The hosts open the show") {
		t.Fatalf("first prompt should be the summary prompt:\n%s", f.completer.prompts[0])
	}
	if !strings.Contains(f.completer.prompts[1], "EXISTING SUMMARY:\nsummary A\n") {
		t.Fatalf("refine prompt missing prior summary:\n%s", f.completer.prompts[1])
	}

	summary, err := f.st.GetSummary(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.Status != store.SummaryCompleted || summary.Summary != "summary C" || len(summary.VectorIDs) != 3 {
		t.Fatalf("stored summary = %+v", summary)
	}
	if len(f.notifier.finished) != 1 {
		t.Fatalf("notifications = %v", f.notifier.finished)
	}
}

func TestSummaryFailureStoresError(t *testing.T) {
	f := newSummaryFixture(t, true)
	testsupport.NewTranscribedEpisode(t, f.st, "ep-1", "A short transcript for the test.")
	f.completer.err = services.Wrap(services.ErrTransient, "llm", "chat", "status 503: raw provider body", nil)

	if err := f.execute(t, jobs.Request{EpisodeID: "ep-1"}); err == nil {
		t.Fatal("expected failure")
	}
	summary, _ := f.st.GetSummary(context.Background(), "ep-1")
	if summary.Status != store.SummaryError || summary.Error != "Failed to process transcript and generate summary" {
		t.Fatalf("stored summary = %+v", summary)
	}
	if len(f.notifier.failed) != 1 {
		t.Fatalf("failure notifications = %v", f.notifier.failed)
	}

	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); err != nil {
		t.Fatalf("errored summary should be retryable without force: %v", err)
	}
}

func TestSummaryInterruptedByShutdownIsRetryable(t *testing.T) {
	f := newSummaryFixture(t, true)
	testsupport.NewTranscribedEpisode(t, f.st, "ep-1", "A short transcript for the test.")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.completer.onCall = cancel

	job, err := f.exec.Prepare(ctx, jobs.Request{EpisodeID: "ep-1"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.exec.Execute(ctx, job, &recordingReporter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute err = %v, want canceled", err)
	}
	if len(f.notifier.failed) != 0 {
		t.Fatalf("shutdown must not send failure notifications: %v", f.notifier.failed)
	}
	summary, _ := f.st.GetSummary(context.Background(), "ep-1")
	if summary.Status != store.SummaryError || summary.Error != "summary interrupted by shutdown" {
		t.Fatalf("stored summary = %+v", summary)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); err != nil {
		t.Fatalf("interrupted summary should be retryable: %v", err)
	}
}

func TestSummaryPrepareGuards(t *testing.T) {
	disabled := newSummaryFixture(t, false)
	if _, err := disabled.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("disabled: %v", err)
	}

	f := newSummaryFixture(t, true)
	testsupport.NewEpisode(t, f.st, "bare")
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "bare"}); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("no transcript: %v", err)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "missing"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}

	testsupport.NewTranscribedEpisode(t, f.st, "done", "Already summarized content.")
	if _, err := f.st.SaveSummary(context.Background(), &store.Summary{EpisodeID: "done", Status: store.SummaryCompleted, Summary: "x"}); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "done"}); !errors.Is(err, jobs.ErrExists) {
		t.Fatalf("completed summary: %v", err)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "done", Force: true}); err != nil {
		t.Fatalf("forced: %v", err)
	}
}
