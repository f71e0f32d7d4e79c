package events

import (
	"context"
	"sync"
	"time"
)

// Publisher delivers lifecycle events to a subscriber. Emitting is
// best-effort from the caller's point of view: services log a publish
// failure but never roll back the operation it describes.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Recorder is the in-memory publisher. It backs tests and is the default
// sink when no broker is configured.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events carrying the given name, in order.
func (r *Recorder) Named(name string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops everything recorded, for reuse between test cases.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
