package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// MemorySource emits a fixed list of events, optionally spaced by an
// interval, then ends.
type MemorySource struct {
	events   []model.Event
	interval time.Duration
	runner
}

// NewMemorySource returns a source for events.
func NewMemorySource(events []model.Event, interval time.Duration) *MemorySource {
	return &MemorySource{events: events, interval: interval}
}

// NewMemorySourceFromConfig reads "events" (a list) and "interval" (ms).
func NewMemorySourceFromConfig(cfg map[string]interface{}) (model.Source, error) {
	var events []model.Event
	switch v := cfg["events"].(type) {
	case nil:
	case []interface{}:
		events = v
	case []map[string]interface{}:
		for _, ev := range v {
			events = append(events, ev)
		}
	default:
		return nil, fmt.Errorf("memory source: events must be a list, got %T", v)
	}
	interval := time.Duration(utils.IntOption(cfg, "interval", 0)) * time.Millisecond
	return NewMemorySource(events, interval), nil
}

func (s *MemorySource) Start(ctx context.Context, emit model.Emitter) error {
	return s.launch(ctx, func(ctx context.Context) {
		for i, ev := range s.events {
			if i > 0 && s.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.interval):
				}
			}
			if ctx.Err() != nil {
				return
			}
			emit.Data(ev)
		}
		emit.End()
	})
}

func (s *MemorySource) Stop(ctx context.Context) error {
	return s.halt(ctx)
}

// MemorySink keeps written events in memory. With MaxEvents set, the
// oldest events are dropped once the limit is exceeded.
type MemorySink struct {
	MaxEvents int

	mu     sync.Mutex
	events []model.Event
	closed bool
}

// NewMemorySink returns an unbounded memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// NewMemorySinkFromConfig reads "maxEvents".
func NewMemorySinkFromConfig(cfg map[string]interface{}) (model.Sink, error) {
	return &MemorySink{MaxEvents: utils.IntOption(cfg, "maxEvents", 0)}, nil
}

func (s *MemorySink) Write(_ context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.MaxEvents > 0 && len(s.events) > s.MaxEvents {
		s.events = s.events[len(s.events)-s.MaxEvents:]
	}
	return nil
}

func (s *MemorySink) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the stored events.
func (s *MemorySink) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Closed reports whether Close was called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
