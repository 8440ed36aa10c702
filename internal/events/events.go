package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a lifecycle event in the work loop
type EventType string

const (
	TaskStarted   EventType = "task.started"
	TaskCompleted EventType = "task.completed"
	TaskFailed    EventType = "task.failed"

	PRCreated EventType = "pr.created"
	PRMerged  EventType = "pr.merged"

	SessionStarted   EventType = "session.started"
	SessionCompleted EventType = "session.completed"
)

// Event is the envelope delivered to all sinks
type Event struct {
	Type      EventType      `json:"event_type"`
	EventID   string         `json:"event_id"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New creates an event with a fresh ID and UTC timestamp
func New(typ EventType, runID string, payload map[string]any) Event {
	return Event{
		Type:      typ,
		EventID:   uuid.New().String(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Sink receives lifecycle events. Delivery is best effort: sinks must
// not block the work loop on failure.
type Sink interface {
	Emit(ev Event) error
}

// MultiSink fans out to several sinks, returning the last error
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that delivers to all provided sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(ev Event) error {
	var lastErr error
	for _, s := range m.sinks {
		if err := s.Emit(ev); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopSink discards events (for testing or disabled notifications)
type NoopSink struct{}

func (NoopSink) Emit(ev Event) error { return nil }
