// Package analytics is a fire-and-forget event log. Sinks never block the
// caller and never return errors.
package analytics

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

const (
	EventSyncCompleted    = "sync_completed"
	EventRestoreCompleted = "restore_completed"
	EventSignedIn         = "signed_in"
	EventSignedOut        = "signed_out"
)

type Sink interface {
	Track(ctx context.Context, event string, props map[string]any)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{logger: l.With("module", "analytics")}
}

func (s *LogSink) Track(ctx context.Context, event string, props map[string]any) {
	args := make([]any, 0, 2+2*len(props))
	args = append(args, "event", event)
	for k, v := range props {
		args = append(args, k, v)
	}
	s.logger.Info(ctx, "analytics event", args...)
}

type Nop struct{}

func (Nop) Track(context.Context, string, map[string]any) {}

// Recorder keeps events in memory; handy in tests and for the REPL status
// command.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

type Event struct {
	Name  string
	Props map[string]any
}

func (r *Recorder) Track(_ context.Context, event string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Props: props})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event with the given name.
func (r *Recorder) Last(name string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Track(ctx context.Context, event string, props map[string]any) {
	for _, s := range m {
		s.Track(ctx, event, props)
	}
}
