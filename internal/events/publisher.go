// Package events carries the circle lifecycle signals that form the
// external compatibility surface: CycleCompleted and GroupRollover. The
// payload schema lives in internal/circle/models; this package only moves
// envelopes to sinks.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeCycleCompleted = "cycle_completed"
	TypeGroupRollover  = "group_rollover"
)

// Event is a transport-agnostic signal envelope.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Publisher delivers circle signals to a sink. Emitting happens after the
// state mutation commits; delivery failures are logged, never rolled back
// into circle state.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// NewEvent stamps an envelope with an id and timestamp.
func NewEvent(eventType string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at,
		Payload:   payload,
	}
}

// MemoryPublisher collects events in memory. Test double and the default
// sink when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty in-memory sink.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Emit appends the event.
func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// ByType returns emitted events of one type.
func (p *MemoryPublisher) ByType(eventType string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
