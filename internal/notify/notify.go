// Package notify delivers user-facing events raised by the engagement
// workflows: contact requests, consent grants and document removals.
package notify

import (
	"context"
	"sync"
	"time"
)

// EventType names a notification.
type EventType string

// Supported events.
const (
	EventContactRequested     EventType = "contact_requested"
	EventProfileAccessGranted EventType = "profile_access_granted"
	EventDocumentDeleted      EventType = "document_deleted"
)

// Event is addressed to a single user.
type Event struct {
	Type       EventType         `json:"type"`
	Audience   string            `json:"audience"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }

// Recorder keeps delivered events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in delivery order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// For returns the events addressed to audience.
func (r *Recorder) For(audience string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Audience == audience {
			out = append(out, e)
		}
	}
	return out
}
