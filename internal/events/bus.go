package events

import (
	"sync"
	"time"
)

const (
	// TypeItemUpdated announces that an episode record changed.
	TypeItemUpdated = "item_updated"
	// TypeTaskUpdated announces a progress change on a tracked task.
	TypeTaskUpdated = "task_updated"
	// ScopeAll marks an event that is not tied to one library.
	ScopeAll = "all"
)

const (
	defaultMaxEvents        = 500
	defaultSubscriberBuffer = 64
)

// Event is a sequenced payload consumed by API clients.
type Event struct {
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Scope     string         `json:"scope,omitempty"`
	EpisodeID string         `json:"episodeId,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus stores recent events and fans them out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	nextSeq     int64
	maxEvents   int
	events      []Event
	nextSubID   int
	subscribers map[int]chan Event
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &Bus{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[int]chan Event),
	}
}

// Publish appends one event, assigns sequence and timestamp, and delivers it
// to every subscriber that has room.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(b.subscribers, id)
		}
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence of the most recent event.
func (b *Bus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Subscribe registers a live listener. The channel is closed when cancel is
// called or when the listener falls behind and is dropped.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if existing, ok := b.subscribers[id]; ok {
				close(existing)
				delete(b.subscribers, id)
			}
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
