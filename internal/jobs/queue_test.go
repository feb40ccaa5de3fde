package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/services"
)

type blockingExecutor struct {
	mu          sync.Mutex
	libraries   map[string]string
	prepareErrs map[string]error
	release     map[string]chan error
	started     []string
	ignoreCtx   map[string]bool
	ctxErrs     map[string]error
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		libraries:   map[string]string{},
		prepareErrs: map[string]error{},
		release:     map[string]chan error{},
		ignoreCtx:   map[string]bool{},
		ctxErrs:     map[string]error{},
	}
}

func (e *blockingExecutor) channel(id string) chan error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.release[id]
	if !ok {
		ch = make(chan error, 1)
		e.release[id] = ch
	}
	return ch
}

func (e *blockingExecutor) Prepare(_ context.Context, req jobs.Request) (jobs.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.prepareErrs[req.EpisodeID]; err != nil {
		return jobs.Job{}, err
	}
	library := e.libraries[req.EpisodeID]
	if library == "" {
		library = "lib-1"
	}
	return jobs.Job{
		TargetID:       req.EpisodeID,
		TargetTitle:    "Episode " + req.EpisodeID,
		ContainerID:    library,
		ContainerTitle: "Show",
		MediaItemID:    "item-" + req.EpisodeID,
	}, nil
}

func (e *blockingExecutor) Execute(ctx context.Context, job jobs.Job, report jobs.Reporter) error {
	e.mu.Lock()
	e.started = append(e.started, job.TargetID)
	ignore := e.ignoreCtx[job.TargetID]
	e.mu.Unlock()

	report.SetOperationToken("token-" + job.TargetID)
	report.SetProgress(50)
	ch := e.channel(job.TargetID)
	if ignore {
		return <-ch
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		e.mu.Lock()
		e.ctxErrs[job.TargetID] = ctx.Err()
		e.mu.Unlock()
		return ctx.Err()
	}
}

func (e *blockingExecutor) startedJobs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...)
}

func newTestQueue(t *testing.T, exec jobs.Executor) (*jobs.Queue, *recordingPublisher, *recordingTasks) {
	t.Helper()
	pub := &recordingPublisher{}
	tasks := &recordingTasks{}
	q := jobs.NewQueue(jobs.KindTranscription, exec,
		jobs.WithPublisher(pub),
		jobs.WithTasks(tasks),
		jobs.WithDrainTimeout(time.Second),
	)
	return q, pub, tasks
}

func startQueue(t *testing.T, q *jobs.Queue) {
	t.Helper()
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(q.Stop)
}

func TestQueueRunsJobsInSubmissionOrder(t *testing.T) {
	exec := newBlockingExecutor()
	q, pub, tasks := newTestQueue(t, exec)
	startQueue(t, q)
	ctx := context.Background()

	for i, want := range []struct {
		outcome  jobs.Outcome
		position int
	}{{jobs.OutcomeStarted, 0}, {jobs.OutcomeQueued, 1}, {jobs.OutcomeQueued, 2}} {
		id := fmt.Sprintf("ep-%d", i+1)
		result, err := q.Submit(ctx, jobs.Request{EpisodeID: id})
		if err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
		if result.Outcome != want.outcome || result.Position != want.position {
			t.Fatalf("Submit %s = %+v, want %s at %d", id, result, want.outcome, want.position)
		}
	}

	waitFor(t, "first job progress", func() bool {
		cur, ok := q.Current()
		return ok && cur.ProgressPercent == 50
	})
	if cur, _ := q.Current(); cur.TargetID != "ep-1" || cur.OperationToken != "token-ep-1" || cur.Status != jobs.StatusRunning {
		t.Fatalf("unexpected current job %+v", cur)
	}
	exec.channel("ep-1") <- nil
	waitFor(t, "second job", func() bool { return len(exec.startedJobs()) == 2 })
	exec.channel("ep-2") <- services.Wrap(services.ErrTimeout, "transcription", "call", "deadline", nil)
	waitFor(t, "third job", func() bool { return len(exec.startedJobs()) == 3 })
	exec.channel("ep-3") <- nil
	waitFor(t, "third finished", func() bool { return pub.has("episode_transcription_finished", "ep-3") })

	got := exec.startedJobs()
	if got[0] != "ep-1" || got[1] != "ep-2" || got[2] != "ep-3" {
		t.Fatalf("execution order = %v", got)
	}
	if !pub.has("episode_transcription_finished", "ep-1") || !pub.has("episode_transcription_error", "ep-2") {
		t.Fatalf("missing lifecycle events: %v", pub.types())
	}
	if !pub.has("episode_transcription_queued", "ep-2") || pub.has("episode_transcription_queued", "ep-1") {
		t.Fatalf("queued events wrong: %v", pub.types())
	}
	errEvent, _ := pub.find("episode_transcription_error")
	if errEvent.Data["error"] != "Transcription operation timed out" {
		t.Fatalf("error message = %v", errEvent.Data["error"])
	}
	finished, failed, _ := tasks.snapshot()
	if finished != 2 || len(failed) != 1 {
		t.Fatalf("tasks finished=%d failed=%v", finished, failed)
	}
	if _, ok := q.Current(); ok {
		t.Fatal("queue should be idle")
	}
}

func TestQueueRejectsFailedPreconditions(t *testing.T) {
	exec := newBlockingExecutor()
	exec.prepareErrs["ep-1"] = services.Wrap(services.ErrPrecondition, "transcription", "prepare", "transcriptions are disabled", nil)
	exec.prepareErrs["ep-2"] = errors.New("database unavailable")
	q, pub, _ := newTestQueue(t, exec)

	result, err := q.Submit(context.Background(), jobs.Request{EpisodeID: "ep-1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != jobs.OutcomeRejected || result.Reason == "" {
		t.Fatalf("result = %+v, want rejected with reason", result)
	}
	if _, err := q.Submit(context.Background(), jobs.Request{EpisodeID: "ep-2"}); err == nil {
		t.Fatal("expected internal error to propagate")
	}
	if _, ok := q.Current(); ok || q.Len() != 0 {
		t.Fatal("rejected request must not create a job")
	}
	if len(pub.types()) != 0 {
		t.Fatalf("unexpected events: %v", pub.types())
	}
}

func TestQueueReportsExistingWork(t *testing.T) {
	exec := newBlockingExecutor()
	exec.prepareErrs["done"] = fmt.Errorf("summary completed: %w", jobs.ErrExists)
	q, _, _ := newTestQueue(t, exec)
	ctx := context.Background()

	result, _ := q.Submit(ctx, jobs.Request{EpisodeID: "done"})
	if result.Outcome != jobs.OutcomeExists {
		t.Fatalf("outcome = %s, want exists", result.Outcome)
	}

	first, _ := q.Submit(ctx, jobs.Request{EpisodeID: "ep-1"})
	again, _ := q.Submit(ctx, jobs.Request{EpisodeID: "ep-1"})
	if again.Outcome != jobs.OutcomeExists || again.JobID != first.JobID {
		t.Fatalf("duplicate running submit = %+v", again)
	}
	queued, _ := q.Submit(ctx, jobs.Request{EpisodeID: "ep-2"})
	dup, _ := q.Submit(ctx, jobs.Request{EpisodeID: "ep-2"})
	if dup.Outcome != jobs.OutcomeExists || dup.Position != 1 || dup.JobID != queued.JobID {
		t.Fatalf("duplicate queued submit = %+v", dup)
	}
}

func TestQueueQueryClearAndLocate(t *testing.T) {
	exec := newBlockingExecutor()
	exec.libraries["b"] = "lib-2"
	q, pub, _ := newTestQueue(t, exec)
	ctx := context.Background()

	for _, id := range []string{"running", "a", "b", "c"} {
		if _, err := q.Submit(ctx, jobs.Request{EpisodeID: id}); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}

	view := q.Query("lib-1")
	if view.Current == nil || view.Current.EpisodeID != "running" || view.Current.Status != "running" {
		t.Fatalf("current = %+v", view.Current)
	}
	if len(view.Queue) != 2 || view.Queue[0].EpisodeID != "a" || view.Queue[1].EpisodeID != "c" {
		t.Fatalf("lib-1 queue = %+v", view.Queue)
	}
	other := q.Query("lib-2")
	if other.Current != nil || len(other.Queue) != 1 {
		t.Fatalf("lib-2 view = %+v", other)
	}

	if loc := q.Locate("running"); !loc.Running {
		t.Fatalf("Locate(running) = %+v", loc)
	}
	if loc := q.Locate("c"); loc.Position != 3 {
		t.Fatalf("Locate(c) = %+v", loc)
	}
	if loc := q.Locate("missing"); loc.Running || loc.Position != 0 {
		t.Fatalf("Locate(missing) = %+v", loc)
	}

	if removed := q.Clear("lib-1"); removed != 2 {
		t.Fatalf("Clear(lib-1) = %d, want 2", removed)
	}
	cleared, ok := pub.find("episode_transcription_queue_cleared")
	if !ok || cleared.Scope != "lib-1" {
		t.Fatalf("cleared event = %+v", cleared)
	}
	if removed := q.Clear(""); removed != 1 {
		t.Fatalf("Clear(all) = %d, want 1", removed)
	}
	if cur, ok := q.Current(); !ok || cur.TargetID != "running" {
		t.Fatal("clear must not touch the running job")
	}
	last := pub.events[len(pub.events)-1]
	if last.Scope != events.ScopeAll {
		t.Fatalf("clear-all scope = %q", last.Scope)
	}
}

func TestQueueAbandonAdvances(t *testing.T) {
	exec := newBlockingExecutor()
	exec.ignoreCtx["stuck"] = true
	q, pub, tasks := newTestQueue(t, exec)
	startQueue(t, q)
	ctx := context.Background()

	q.Submit(ctx, jobs.Request{EpisodeID: "stuck"})
	q.Submit(ctx, jobs.Request{EpisodeID: "next"})
	waitFor(t, "stuck job", func() bool { return len(exec.startedJobs()) == 1 })

	if q.Abandon("other", "nope") {
		t.Fatal("Abandon must ignore non-running targets")
	}
	if !q.Abandon("stuck", "Transcription operation timed out") {
		t.Fatal("Abandon returned false")
	}
	waitFor(t, "next job", func() bool { return len(exec.startedJobs()) == 2 })
	if cur, _ := q.Current(); cur.TargetID != "next" {
		t.Fatalf("current = %s, want next", cur.TargetID)
	}

	exec.channel("stuck") <- nil
	exec.channel("next") <- nil
	waitFor(t, "next finished", func() bool { return pub.has("episode_transcription_finished", "next") })
	if pub.has("episode_transcription_finished", "stuck") {
		t.Fatal("abandoned job result must be discarded")
	}
	if !pub.has("episode_transcription_error", "stuck") {
		t.Fatalf("missing abandon error event: %v", pub.types())
	}
	_, failed, _ := tasks.snapshot()
	if len(failed) != 1 || failed[0] != "Transcription operation timed out" {
		t.Fatalf("failed tasks = %v", failed)
	}
}

func TestQueueStopCancelsRunningJob(t *testing.T) {
	exec := newBlockingExecutor()
	q, _, _ := newTestQueue(t, exec)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := q.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
	q.Submit(context.Background(), jobs.Request{EpisodeID: "ep-1"})
	waitFor(t, "job", func() bool { return len(exec.startedJobs()) == 1 })

	q.Stop()
	exec.mu.Lock()
	defer exec.mu.Unlock()
	if !errors.Is(exec.ctxErrs["ep-1"], context.Canceled) {
		t.Fatalf("executor ctx err = %v, want canceled", exec.ctxErrs["ep-1"])
	}
}

func TestQueueStopDoesNotReportInterruptedJobAsFailure(t *testing.T) {
	exec := newBlockingExecutor()
	q, pub, tasks := newTestQueue(t, exec)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q.Submit(context.Background(), jobs.Request{EpisodeID: "ep-1"})
	waitFor(t, "job", func() bool { return len(exec.startedJobs()) == 1 })

	q.Stop()
	if pub.has("episode_transcription_error", "ep-1") {
		t.Fatalf("shutdown published an error event: %v", pub.types())
	}
	if pub.has("episode_transcription_finished", "ep-1") {
		t.Fatalf("interrupted job reported as finished: %v", pub.types())
	}
	finished, failed, _ := tasks.snapshot()
	if finished != 0 || len(failed) != 1 || failed[0] != "interrupted by shutdown" {
		t.Fatalf("tasks finished=%d failed=%v", finished, failed)
	}
}

func TestToView(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	view := jobs.ToView(jobs.Job{
		ID:             "job",
		Kind:           jobs.KindSummary,
		MediaItemID:    "item",
		ContainerID:    "lib",
		TargetID:       "ep",
		TargetTitle:    "Pilot",
		ContainerTitle: "Show",
		CreatedAt:      created,
		Status:         jobs.StatusQueued,
	})
	if view.LibraryItemID != "item" || view.LibraryID != "lib" || view.EpisodeID != "ep" ||
		view.EpisodeTitle != "Pilot" || view.PodcastTitle != "Show" || view.Kind != "summary" ||
		view.Status != "queued" || view.CreatedAt != "2024-03-01T12:00:00Z" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestOperationTokenRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	token := jobs.OperationToken(now, "item-with-dashes", "ep-1")
	if token != "whisper-transcription-1700000000123-item-with-dashes-ep-1" {
		t.Fatalf("token = %q", token)
	}
	parsed, err := jobs.ParseOperationToken(token)
	if err != nil || !parsed.Equal(now) {
		t.Fatalf("ParseOperationToken = %v, %v", parsed, err)
	}
	for _, bad := range []string{"", "whisper-transcription", "whisper-transcription-soon-x-y"} {
		if _, err := jobs.ParseOperationToken(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
