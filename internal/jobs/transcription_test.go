package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/retry"
	"castscribe/internal/services"
	"castscribe/internal/store"
	"castscribe/internal/testsupport"
	"castscribe/internal/transcript"
)

type scriptedTranscriber struct {
	mu     sync.Mutex
	errs   map[string][]error
	calls  map[string]int
	onCall func()
}

func newScriptedTranscriber() *scriptedTranscriber {
	return &scriptedTranscriber{errs: map[string][]error{}, calls: map[string]int{}}
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, path string) (*transcript.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := filepath.Base(path)
	s.calls[base]++
	if s.onCall != nil {
		s.onCall()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if queue := s.errs[base]; len(queue) > 0 {
		err := queue[0]
		s.errs[base] = queue[1:]
		if err != nil {
			return nil, err
		}
	}
	return &transcript.Transcript{
		Results: []transcript.Result{{
			Transcript: "text of " + base,
			Words: []transcript.Word{
				{Word: "text", StartTime: transcript.Timestamp{Seconds: 0}, EndTime: transcript.Timestamp{Seconds: 10}},
			},
		}},
		Segments: []transcript.Segment{{Text: "text of " + base, Start: 0, End: 10}},
	}, nil
}

type fakeSplitter struct {
	split    bool
	chunks   int
	splitErr error
	dir      string
	cleaned  []string
}

func (f *fakeSplitter) NeedsSplit(path string) (bool, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, err
	}
	return f.split, info.Size(), nil
}

func (f *fakeSplitter) Split(_ context.Context, _ string, outputDir string) ([]string, error) {
	f.dir = outputDir
	if f.splitErr != nil {
		return nil, f.splitErr
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, f.chunks)
	for i := range f.chunks {
		p := filepath.Join(outputDir, fmt.Sprintf("chunk_%03d.mp3", i))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeSplitter) Cleanup(paths []string) {
	for _, p := range paths {
		f.cleaned = append(f.cleaned, filepath.Base(p))
		_ = os.Remove(p)
	}
}

type fakeVectorizer struct {
	episodes []string
}

func (f *fakeVectorizer) Vectorize(_ context.Context, episode *store.Episode, _, _ string) (int, error) {
	f.episodes = append(f.episodes, episode.ID)
	return 1, nil
}

type transcriptionFixture struct {
	st          *store.Store
	episode     *store.Episode
	transcriber *scriptedTranscriber
	splitter    *fakeSplitter
	publisher   *recordingPublisher
	notifier    *fakeNotifier
	vectorizer  *fakeVectorizer
	summaries   *submitRecorder
	delays      []time.Duration
	exec        *jobs.TranscriptionExecutor
}

func newTranscriptionFixture(t *testing.T, settings jobs.TranscriptionSettings) *transcriptionFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "ep-1")
	testsupport.WriteFile(t, episode.AudioPath, 1024)

	f := &transcriptionFixture{
		st:          st,
		episode:     episode,
		transcriber: newScriptedTranscriber(),
		splitter:    &fakeSplitter{},
		publisher:   &recordingPublisher{},
		notifier:    &fakeNotifier{},
		vectorizer:  &fakeVectorizer{},
		summaries:   &submitRecorder{},
	}
	if settings.Retry == (retry.Policy{}) {
		settings.Retry = retry.DefaultPolicy()
	}
	f.exec = jobs.NewTranscriptionExecutor(settings, jobs.TranscriptionDeps{
		Store:       st,
		Transcriber: f.transcriber,
		Splitter:    f.splitter,
		Publisher:   f.publisher,
		Notifier:    f.notifier,
		Vectorizer:  f.vectorizer,
		Summaries:   f.summaries,
	},
		jobs.WithTranscriptionClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		jobs.WithRetrySleeper(func(_ context.Context, d time.Duration) error {
			f.delays = append(f.delays, d)
			return nil
		}),
	)
	return f
}

func (f *transcriptionFixture) run(t *testing.T) (*jobs.Job, *recordingReporter, error) {
	t.Helper()
	job, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: f.episode.ID})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	job.ID = "job-1"
	report := &recordingReporter{}
	return &job, report, f.exec.Execute(context.Background(), job, report)
}

func TestTranscriptionDirectWithRetry(t *testing.T) {
	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true, AutoVectorize: true, AutoSummarize: true})
	transient := services.Wrap(services.ErrTransient, "whisper", "transcribe", "rate limited", nil)
	f.transcriber.errs["ep-1.mp3"] = []error{transient, transient}

	job, report, err := f.run(t)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.ContainerID != "lib-1" || job.MediaItemID != "item-ep-1" || job.ContainerTitle != "Test Podcast" {
		t.Fatalf("unexpected job %+v", job)
	}
	if f.transcriber.calls["ep-1.mp3"] != 3 {
		t.Fatalf("transcribe calls = %d, want 3", f.transcriber.calls["ep-1.mp3"])
	}
	if len(f.delays) != 2 || f.delays[0] != 5*time.Second || f.delays[1] != 7500*time.Millisecond {
		t.Fatalf("delays = %v", f.delays)
	}
	if report.token != "whisper-transcription-1700000000000-item-ep-1-ep-1" {
		t.Fatalf("token = %q", report.token)
	}

	stored, err := f.st.GetEpisode(context.Background(), "ep-1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if !stored.HasTranscript() || stored.TranscriptionOperation != "" {
		t.Fatalf("stored episode = %+v", stored)
	}
	if !f.publisher.has(events.TypeItemUpdated, "ep-1") {
		t.Fatalf("missing item_updated: %v", f.publisher.types())
	}
	if len(f.notifier.finished) != 1 || len(f.vectorizer.episodes) != 1 || len(f.summaries.requests) != 1 {
		t.Fatalf("follow-ups: notify=%v vectorize=%v summarize=%v", f.notifier.finished, f.vectorizer.episodes, f.summaries.requests)
	}
}

func TestTranscriptionChunkedPartialSuccess(t *testing.T) {
	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true})
	f.splitter.split = true
	f.splitter.chunks = 3
	f.transcriber.errs["chunk_001.mp3"] = []error{services.Wrap(services.ErrConfiguration, "whisper", "transcribe", "bad key", nil)}

	_, report, err := f.run(t)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.transcriber.calls["chunk_001.mp3"] != 1 {
		t.Fatal("permanent errors must not be retried")
	}
	want := []float64{0, 100.0 / 3, 200.0 / 3, 100}
	if len(report.progress) != len(want) {
		t.Fatalf("progress = %v", report.progress)
	}
	for i := range want {
		if diff := report.progress[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("progress = %v, want %v", report.progress, want)
		}
	}
	if len(f.splitter.cleaned) != 3 {
		t.Fatalf("cleaned chunks = %v", f.splitter.cleaned)
	}
	if filepath.Base(f.splitter.dir) != ".temp_chunks-job-1" || filepath.Dir(f.splitter.dir) != filepath.Dir(f.episode.AudioPath) {
		t.Fatalf("temp dir = %s", f.splitter.dir)
	}
	if _, err := os.Stat(f.splitter.dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp dir should be removed, stat err = %v", err)
	}

	stored, _ := f.st.GetEpisode(context.Background(), "ep-1")
	segments := stored.Transcript.Segments
	if len(segments) != 2 || segments[1].Start != 10 {
		t.Fatalf("merged segments = %+v", segments)
	}
}

func TestTranscriptionAllChunksFail(t *testing.T) {
	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true, MaxFailedAttempts: 1})
	f.splitter.split = true
	f.splitter.chunks = 2
	bad := services.Wrap(services.ErrValidation, "whisper", "transcribe", "unsupported format", nil)
	f.transcriber.errs["chunk_000.mp3"] = []error{bad}
	f.transcriber.errs["chunk_001.mp3"] = []error{bad}

	_, _, err := f.run(t)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Execute err = %v, want external tool failure", err)
	}
	stored, _ := f.st.GetEpisode(context.Background(), "ep-1")
	if stored.TranscriptionOperation != "" || stored.HasTranscript() {
		t.Fatalf("failed run must clear token and store nothing: %+v", stored)
	}
	if f.exec.FailedAttempts("ep-1") != 1 {
		t.Fatalf("failed attempts = %d", f.exec.FailedAttempts("ep-1"))
	}
	if len(f.notifier.failed) != 1 || f.notifier.failed[0] != "transcription:Episode ep-1:Failed to get transcription result" {
		t.Fatalf("failure notifications = %v", f.notifier.failed)
	}

	_, err = f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("Prepare after max failures = %v, want precondition", err)
	}
}

func TestTranscriptionInterruptedByShutdownIsNotAFailure(t *testing.T) {
	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true, MaxFailedAttempts: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.transcriber.onCall = cancel

	job, err := f.exec.Prepare(ctx, jobs.Request{EpisodeID: f.episode.ID})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	job.ID = "job-1"
	if err := f.exec.Execute(ctx, job, &recordingReporter{}); err == nil {
		t.Fatal("expected interrupted run to report an error")
	}
	if f.exec.FailedAttempts("ep-1") != 0 {
		t.Fatalf("failed attempts = %d, want 0", f.exec.FailedAttempts("ep-1"))
	}
	if len(f.notifier.failed) != 0 {
		t.Fatalf("shutdown must not send failure notifications: %v", f.notifier.failed)
	}
	stored, _ := f.st.GetEpisode(context.Background(), "ep-1")
	if stored.TranscriptionOperation != "" {
		t.Fatalf("operation token left behind: %q", stored.TranscriptionOperation)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); err != nil {
		t.Fatalf("interrupted episode should be resubmittable: %v", err)
	}
}

func TestTranscriptionSplitFailure(t *testing.T) {
	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true})
	f.splitter.split = true
	f.splitter.splitErr = errors.New("ffmpeg exited 1")

	_, _, err := f.run(t)
	if err == nil {
		t.Fatal("expected split failure")
	}
	if f.exec.FailedAttempts("ep-1") != 1 {
		t.Fatal("split failure should count as a failed attempt")
	}
}

func TestTranscriptionPrepareRejects(t *testing.T) {
	disabled := newTranscriptionFixture(t, jobs.TranscriptionSettings{})
	if _, err := disabled.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("disabled: %v", err)
	}

	f := newTranscriptionFixture(t, jobs.TranscriptionSettings{Enabled: true})
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "missing"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing episode: %v", err)
	}
	if err := os.Remove(f.episode.AudioPath); err != nil {
		t.Fatalf("remove audio: %v", err)
	}
	if _, err := f.exec.Prepare(context.Background(), jobs.Request{EpisodeID: "ep-1"}); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("missing audio: %v", err)
	}
}
