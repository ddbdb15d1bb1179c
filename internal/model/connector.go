package model

import "context"

// Emitter receives the signals a Source produces. Implementations must be
// safe for use from the source's own goroutines.
type Emitter interface {
	// Data delivers one event.
	Data(ev Event)
	// End reports that the source is exhausted. No data follows.
	End()
	// Error reports a non-fatal source problem. The source keeps running.
	Error(err error)
}

// Source produces events. Start should return once the source has begun
// producing; emission continues asynchronously until End or Stop.
type Source interface {
	Start(ctx context.Context, emit Emitter) error
	// Stop is idempotent.
	Stop(ctx context.Context) error
}

// Sink consumes events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	// Close is idempotent.
	Close(ctx context.Context) error
}

// SourceFactory builds a Source from descriptor configuration.
type SourceFactory func(config map[string]interface{}) (Source, error)

// SinkFactory builds a Sink from descriptor configuration.
type SinkFactory func(config map[string]interface{}) (Sink, error)
