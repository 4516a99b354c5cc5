package notify

import (
	"context"
	"sync"

	"bookinventory/internal/book"
)

// Recorder is a Listener that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []book.Event
}

func (r *Recorder) Notify(_ context.Context, e book.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []book.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]book.Event(nil), r.events...)
}

// Names returns the recorded event names in arrival order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name()
	}
	return names
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
