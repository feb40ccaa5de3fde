// Package tasks tracks user-visible progress of long-running jobs.
package tasks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"castscribe/internal/events"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

const defaultRetainFinished = 50

// Task is a snapshot of one tracked unit of work.
type Task struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Status      Status         `json:"status"`
	Progress    float64        `json:"progress"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt,omitzero"`
}

// Publisher receives task change events.
type Publisher interface {
	Publish(events.Event) events.Event
}

// Tracker keeps running tasks and a bounded tail of finished ones.
type Tracker struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	order  []string
	retain int
	events Publisher
	now    func() time.Time
}

// NewTracker builds a tracker that announces changes on publisher, which may be nil.
func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{
		tasks:  make(map[string]*Task),
		retain: defaultRetainFinished,
		events: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a running task and returns its id.
func (t *Tracker) Create(action, title, description string, data map[string]any) string {
	task := &Task{
		ID:          uuid.NewString(),
		Action:      action,
		Title:       title,
		Description: description,
		Data:        data,
		Status:      StatusRunning,
		StartedAt:   t.now(),
	}
	t.mu.Lock()
	t.tasks[task.ID] = task
	t.order = append(t.order, task.ID)
	snapshot := *task
	t.mu.Unlock()

	t.announce(snapshot)
	return task.ID
}

// SetProgress records percent complete, clamped to [0,100].
func (t *Tracker) SetProgress(id string, percent float64) {
	percent = min(max(percent, 0), 100)
	t.update(id, func(task *Task) bool {
		if task.Status != StatusRunning {
			return false
		}
		task.Progress = percent
		return true
	})
}

// Finish marks the task successful.
func (t *Tracker) Finish(id string) {
	t.update(id, func(task *Task) bool {
		if task.Status != StatusRunning {
			return false
		}
		task.Status = StatusFinished
		task.Progress = 100
		task.FinishedAt = t.now()
		return true
	})
}

// Fail marks the task failed with a user-facing message.
func (t *Tracker) Fail(id, message string) {
	t.update(id, func(task *Task) bool {
		if task.Status != StatusRunning {
			return false
		}
		task.Status = StatusFailed
		task.Error = message
		task.FinishedAt = t.now()
		return true
	})
}

// Get returns a copy of the task.
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// List returns all retained tasks, newest first.
func (t *Tracker) List() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Task, 0, len(t.tasks))
	for _, id := range t.order {
		out = append(out, *t.tasks[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (t *Tracker) update(id string, mutate func(*Task) bool) {
	t.mu.Lock()
	task, ok := t.tasks[id]
	if !ok || !mutate(task) {
		t.mu.Unlock()
		return
	}
	snapshot := *task
	if snapshot.Status != StatusRunning {
		t.pruneLocked()
	}
	t.mu.Unlock()

	t.announce(snapshot)
}

// pruneLocked drops the oldest finished tasks beyond the retention limit.
func (t *Tracker) pruneLocked() {
	finished := 0
	for _, id := range t.order {
		if t.tasks[id].Status != StatusRunning {
			finished++
		}
	}
	if finished <= t.retain {
		return
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if finished > t.retain && t.tasks[id].Status != StatusRunning {
			delete(t.tasks, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func (t *Tracker) announce(task Task) {
	if t.events == nil {
		return
	}
	t.events.Publish(events.Event{
		Type:    events.TypeTaskUpdated,
		Scope:   events.ScopeAll,
		Message: task.Title,
		Data: map[string]any{
			"taskId":   task.ID,
			"action":   task.Action,
			"status":   string(task.Status),
			"progress": task.Progress,
			"error":    task.Error,
		},
	})
}
