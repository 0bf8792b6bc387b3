// Package events broadcasts supervisor outcomes to interested front-ends.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type string

const (
	TypeStarted        Type = "started"
	TypeAlreadyRunning Type = "already_running"
	TypeStopped        Type = "stopped"
	TypeNotRunning     Type = "not_running"
	TypeSpawnFailed    Type = "spawn_failed"
	TypeStopFailed     Type = "stop_failed"
)

// Event is a single supervisor outcome.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New stamps an event with a fresh ID and the current time.
func New(t Type, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Stream fans events out to subscribers and keeps a bounded backlog that new
// subscribers receive first. Slow subscribers drop events rather than block
// publishers.
type Stream struct {
	mu       sync.Mutex
	closed   bool
	subs     map[chan Event]struct{}
	backlog  []Event
	capacity int
}

// NewStream constructs a stream retaining up to capacity events.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = 1
	}
	return &Stream{
		subs:     make(map[chan Event]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a subscriber. The returned release func unsubscribes and
// closes the channel. The boolean is false when the stream is already closed.
func (s *Stream) Subscribe(buffer int) (<-chan Event, func(), bool) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}, false
	}
	for _, evt := range s.backlog {
		select {
		case ch <- evt:
		default:
		}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, release, true
}

// Publish delivers evt to every subscriber without blocking.
func (s *Stream) Publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.backlog = append(s.backlog, evt)
	if len(s.backlog) > s.capacity {
		s.backlog = s.backlog[len(s.backlog)-s.capacity:]
	}
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.backlog = nil
}
