package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"castscribe/internal/events"
	"castscribe/internal/jobs"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Seq = int64(len(p.events) + 1)
	p.events = append(p.events, event)
	return event
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type+":"+e.EpisodeID)
	}
	return out
}

func (p *recordingPublisher) has(eventType, episodeID string) bool {
	for _, entry := range p.types() {
		if entry == eventType+":"+episodeID {
			return true
		}
	}
	return false
}

func (p *recordingPublisher) find(eventType string) (events.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Type == eventType {
			return e, true
		}
	}
	return events.Event{}, false
}

type recordingTasks struct {
	mu       sync.Mutex
	created  []string
	progress []float64
	finished int
	failed   []string
}

func (r *recordingTasks) Create(action, _, _ string, _ map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, action)
	return action
}

func (r *recordingTasks) SetProgress(_ string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, percent)
}

func (r *recordingTasks) Finish(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *recordingTasks) Fail(_, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, message)
}

func (r *recordingTasks) snapshot() (int, []string, []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished, append([]string(nil), r.failed...), append([]float64(nil), r.progress...)
}

type recordingReporter struct {
	mu       sync.Mutex
	progress []float64
	token    string
}

func (r *recordingReporter) SetProgress(percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, percent)
}

func (r *recordingReporter) SetOperationToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

type fakeNotifier struct {
	mu       sync.Mutex
	finished []string
	failed   []string
}

func (n *fakeNotifier) NotifyTranscriptionFinished(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, "transcription:"+title)
	return nil
}

func (n *fakeNotifier) NotifyTranscriptionFailed(_ context.Context, title, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, "transcription:"+title+":"+reason)
	return nil
}

func (n *fakeNotifier) NotifySummaryFinished(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, "summary:"+title)
	return nil
}

func (n *fakeNotifier) NotifySummaryFailed(_ context.Context, title, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, "summary:"+title+":"+reason)
	return nil
}

type submitRecorder struct {
	requests []jobs.Request
}

func (s *submitRecorder) Submit(_ context.Context, req jobs.Request) (jobs.SubmitResult, error) {
	s.requests = append(s.requests, req)
	return jobs.SubmitResult{Outcome: jobs.OutcomeStarted}, nil
}
