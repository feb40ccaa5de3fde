package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"castscribe/internal/events"
	"castscribe/internal/logging"
	"castscribe/internal/services"
)

// DefaultDrainTimeout bounds how long shutdown waits for a running job.
const DefaultDrainTimeout = 30 * time.Second

type kindInfo struct {
	action      string
	title       string
	description string
}

var kinds = map[Kind]kindInfo{
	KindTranscription: {
		action:      "transcribe-episode",
		title:       "Transcribing episode",
		description: "Transcribing episode %q",
	},
	KindSummary: {
		action:      "summarize-episode",
		title:       "Processing episode transcript and generating summary",
		description: "Processing transcript and generating summary for episode %q",
	},
}

type active struct {
	job       Job
	launched  bool
	cancel    context.CancelFunc
	abandoned chan struct{}
	taskID    string
}

// Queue is a single-worker FIFO queue for one job kind.
type Queue struct {
	kind      Kind
	exec      Executor
	publisher Publisher
	tasks     TaskSink
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	drain     time.Duration

	mu      sync.RWMutex
	current *active
	waiting []Job

	wake    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) QueueOption {
	return func(q *Queue) {
		if p != nil {
			q.publisher = p
		}
	}
}

// WithTasks sets the task sink.
func WithTasks(t TaskSink) QueueOption {
	return func(q *Queue) {
		if t != nil {
			q.tasks = t
		}
	}
}

// WithQueueLogger sets the queue logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithDrainTimeout bounds how long Stop waits for the running job.
func WithDrainTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.drain = d
		}
	}
}

// NewQueue constructs a queue that runs jobs through exec.
func NewQueue(kind Kind, exec Executor, opts ...QueueOption) *Queue {
	q := &Queue{
		kind:      kind,
		exec:      exec,
		publisher: noopPublisher{},
		tasks:     noopTasks{},
		logger:    logging.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		drain:     DefaultDrainTimeout,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.logger = logging.NewComponentLogger(q.logger, string(kind)+"-queue")
	return q
}

// Kind reports the queue kind.
func (q *Queue) Kind() Kind {
	return q.kind
}

// Submit checks req with the executor and starts or enqueues the job. An
// episode appears at most once in the queue: a repeat request for an episode
// that is running or waiting returns OutcomeExists with the existing job id
// and position instead of appending a duplicate.
func (q *Queue) Submit(ctx context.Context, req Request) (SubmitResult, error) {
	job, err := q.exec.Prepare(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrExists):
			return SubmitResult{Outcome: OutcomeExists, Reason: err.Error()}, nil
		case services.Classify(err) == services.CategoryPrecondition:
			q.logger.Info("request rejected",
				logging.String(logging.FieldEpisodeID, req.EpisodeID),
				logging.String("reason", err.Error()),
			)
			return SubmitResult{Outcome: OutcomeRejected, Reason: err.Error()}, nil
		default:
			return SubmitResult{}, err
		}
	}

	job.ID = q.newID()
	job.Kind = q.kind
	job.CreatedAt = q.now()

	q.mu.Lock()
	if q.current != nil && q.current.job.TargetID == job.TargetID {
		q.mu.Unlock()
		return SubmitResult{Outcome: OutcomeExists, JobID: q.current.job.ID, Reason: "already running"}, nil
	}
	for i, waiting := range q.waiting {
		if waiting.TargetID == job.TargetID {
			q.mu.Unlock()
			return SubmitResult{Outcome: OutcomeExists, JobID: waiting.ID, Position: i + 1, Reason: "already queued"}, nil
		}
	}
	if q.current == nil && len(q.waiting) == 0 {
		job.Status = StatusRunning
		q.current = &active{job: job, abandoned: make(chan struct{})}
		q.mu.Unlock()
		q.signal()
		return SubmitResult{Outcome: OutcomeStarted, JobID: job.ID}, nil
	}
	job.Status = StatusQueued
	q.waiting = append(q.waiting, job)
	position := len(q.waiting)
	q.mu.Unlock()

	q.publish(job, "queued", "", eventData(job))
	q.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEpisodeID, job.TargetID),
		logging.Int("position", position),
	)
	return SubmitResult{Outcome: OutcomeQueued, JobID: job.ID, Position: position}, nil
}

// Query lists waiting jobs for containerID plus the running job when it
// belongs to the same container.
func (q *Queue) Query(containerID string) QueueView {
	q.mu.RLock()
	defer q.mu.RUnlock()

	view := QueueView{Queue: []JobView{}}
	for _, job := range q.waiting {
		if job.ContainerID == containerID {
			view.Queue = append(view.Queue, ToView(job))
		}
	}
	if q.current != nil && q.current.job.ContainerID == containerID {
		current := ToView(q.current.job)
		view.Current = &current
	}
	return view
}

// Current returns the running job.
func (q *Queue) Current() (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current == nil {
		return Job{}, false
	}
	return q.current.job, true
}

// Locate reports whether targetID is running or waiting.
func (q *Queue) Locate(targetID string) Location {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current != nil && q.current.job.TargetID == targetID {
		return Location{Running: true}
	}
	for i, job := range q.waiting {
		if job.TargetID == targetID {
			return Location{Position: i + 1}
		}
	}
	return Location{}
}

// Len reports the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.waiting)
}

// Clear removes waiting jobs for containerID, or every waiting job when
// containerID is empty. The running job is never touched.
func (q *Queue) Clear(containerID string) int {
	q.mu.Lock()
	kept := make([]Job, 0, len(q.waiting))
	removed := 0
	for _, job := range q.waiting {
		if containerID == "" || job.ContainerID == containerID {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.waiting = kept
	q.mu.Unlock()

	scope := containerID
	if scope == "" {
		scope = events.ScopeAll
	}
	q.publisher.Publish(events.Event{
		Type:    q.kind.EventPrefix() + "_queue_cleared",
		Scope:   scope,
		Message: fmt.Sprintf("cleared %d queued %s jobs", removed, q.kind),
		Data:    map[string]any{"libraryId": containerID, "removed": removed},
	})
	q.logger.Info("queue cleared",
		logging.String(logging.FieldLibraryID, scope),
		logging.Int("removed", removed),
	)
	return removed
}

// Abandon drops the running job for targetID so the queue can advance. The
// executor's context is cancelled and its eventual result is discarded.
func (q *Queue) Abandon(targetID, reason string) bool {
	q.mu.Lock()
	act := q.current
	if act == nil || act.job.TargetID != targetID {
		q.mu.Unlock()
		return false
	}
	q.current = nil
	close(act.abandoned)
	if act.cancel != nil {
		act.cancel()
	}
	q.mu.Unlock()

	if act.launched {
		q.tasks.Fail(act.taskID, reason)
	}
	data := eventData(act.job)
	data["error"] = reason
	q.publish(act.job, "error", reason, data)
	logging.WarnWithContext(q.logger, "running job abandoned", "job_abandoned",
		logging.String(logging.FieldJobID, act.job.ID),
		logging.String(logging.FieldEpisodeID, targetID),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "queue advances to the next job"),
	)
	q.signal()
	return true
}

// Start launches the worker goroutine.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return errors.New("queue already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true
	q.wg.Add(1)
	go q.run(runCtx)
	return nil
}

// Stop cancels the worker and waits for it to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.started = false
	q.cancel = nil
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		act, jobCtx := q.claim(ctx)
		if act == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.execute(ctx, jobCtx, act)
		if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) claim(ctx context.Context) (*active, context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ctx.Err() != nil {
		return nil, nil
	}
	if q.current == nil {
		if len(q.waiting) == 0 {
			return nil, nil
		}
		job := q.waiting[0]
		q.waiting = q.waiting[1:]
		job.Status = StatusRunning
		q.current = &active{job: job, abandoned: make(chan struct{})}
	}
	if q.current.launched {
		return nil, nil
	}
	act := q.current
	act.launched = true

	jobCtx, cancel := context.WithCancelCause(ctx)
	act.cancel = func() { cancel(errAbandoned) }
	jobCtx = services.WithJobID(jobCtx, act.job.ID)
	jobCtx = services.WithJobKind(jobCtx, string(q.kind))
	jobCtx = services.WithEpisodeID(jobCtx, act.job.TargetID)

	info := kinds[q.kind]
	act.taskID = q.tasks.Create(info.action, info.title, fmt.Sprintf(info.description, act.job.TargetTitle), map[string]any{
		"libraryId":     act.job.ContainerID,
		"libraryItemId": act.job.MediaItemID,
		"episodeId":     act.job.TargetID,
	})
	return act, jobCtx
}

func (q *Queue) execute(ctx, jobCtx context.Context, act *active) {
	defer act.cancel()
	job := act.job
	logger := logging.WithContext(jobCtx, q.logger)
	logger.Info("job started", logging.String("episode_title", job.TargetTitle))
	q.publish(job, "started", "", eventData(job))

	started := q.now()
	done := make(chan error, 1)
	go func() {
		done <- q.exec.Execute(jobCtx, job, &reporter{queue: q, act: act})
	}()

	var err error
	select {
	case err = <-done:
	case <-act.abandoned:
		return
	case <-ctx.Done():
		act.cancel()
		select {
		case err = <-done:
		case <-time.After(q.drain):
			logging.WarnWithContext(logger, "running job did not stop before drain timeout", "job_drain_timeout",
				logging.Duration("drain_timeout", q.drain),
				logging.String(logging.FieldImpact, "job result discarded"),
			)
			return
		}
	}

	q.mu.Lock()
	if q.current != act {
		q.mu.Unlock()
		return
	}
	q.current = nil
	finished := act.job
	q.mu.Unlock()

	elapsed := q.now().Sub(started)
	if err != nil && ctx.Err() != nil {
		q.tasks.Fail(act.taskID, "interrupted by shutdown")
		logger.Info("job interrupted by shutdown", logging.Duration("elapsed", elapsed))
		return
	}
	if err != nil {
		message := services.UserMessage(string(q.kind), err)
		q.tasks.Fail(act.taskID, message)
		data := eventData(finished)
		data["error"] = message
		q.publish(finished, "error", message, data)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "check provider connectivity and the episode audio"),
		)
	} else {
		q.tasks.Finish(act.taskID)
		q.publish(finished, "finished", "", eventData(finished))
		logger.Info("job finished", logging.Duration("elapsed", elapsed))
	}
}

func (q *Queue) publish(job Job, suffix, message string, data map[string]any) {
	q.publisher.Publish(events.Event{
		Type:      q.kind.EventPrefix() + "_" + suffix,
		Scope:     job.ContainerID,
		EpisodeID: job.TargetID,
		Message:   message,
		Data:      data,
	})
}

type reporter struct {
	queue *Queue
	act   *active
}

func (r *reporter) SetProgress(percent float64) {
	r.queue.mu.Lock()
	if r.queue.current == r.act {
		r.act.job.ProgressPercent = percent
	}
	taskID := r.act.taskID
	r.queue.mu.Unlock()
	r.queue.tasks.SetProgress(taskID, percent)
}

func (r *reporter) SetOperationToken(token string) {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	if r.queue.current == r.act {
		r.act.job.OperationToken = token
	}
}
