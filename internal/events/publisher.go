package events

import (
	"context"
	"sync"
)

// Publisher delivers transaction events.
type Publisher interface {
	Publish(ctx context.Context, event *TransactionEvent) error
}

// NopPublisher drops every event. It is used when AMQP is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, event *TransactionEvent) error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []TransactionEvent
}

// Publish implements Publisher.
func (r *Recorder) Publish(ctx context.Context, event *TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []TransactionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransactionEvent, len(r.events))
	copy(out, r.events)
	return out
}
