package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes backup lifecycle events.
type EventType string

const (
	BackupStarted    EventType = "backup.started"
	BackupCompleted  EventType = "backup.completed"
	BackupFailed     EventType = "backup.failed"
	BackupSkipped    EventType = "backup.skipped"
	RestoreStarted   EventType = "restore.started"
	RestoreCompleted EventType = "restore.completed"
	RestoreFailed    EventType = "restore.failed"
	RetentionPruned  EventType = "retention.pruned"
	DRTestCompleted  EventType = "drtest.completed"
)

// Event records something that happened to a recovery point.
type Event struct {
	ID              string        `json:"id"`
	Type            EventType     `json:"type"`
	RecoveryPointID string        `json:"recovery_point_id,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
	Duration        time.Duration `json:"duration,omitempty"`
	SizeBytes       int64         `json:"size_bytes,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Handler processes events.
type Handler func(ctx context.Context, event Event)

// Bus is a small in-memory event bus. Handlers run asynchronously;
// a bounded ring of recent events is kept for replay.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]Handler
	all       []Handler
	events    []Event
	maxEvents int
}

// NewBus creates an event bus retaining the last 10k events.
func NewBus() *Bus {
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		events:    make([]Event, 0, 1024),
		maxEvents: 10000,
	}
}

// Publish records the event and notifies subscribers.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		b.events = b.events[1:]
	}
	typed := make([]Handler, len(b.handlers[event.Type]))
	copy(typed, b.handlers[event.Type])
	all := make([]Handler, len(b.all))
	copy(all, b.all)
	b.mu.Unlock()

	for _, h := range typed {
		go h(ctx, event)
	}
	for _, h := range all {
		go h(ctx, event)
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Replay returns retained events in the given window.
func (b *Bus) Replay(from, to time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.Timestamp.After(from) && event.Timestamp.Before(to) {
			result = append(result, event)
		}
	}
	return result
}
