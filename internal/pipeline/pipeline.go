package pipeline

import (
	"context"
	"sync"

	"streamsynth/internal/model"
)

// Pipeline is the user-facing builder and lifecycle handle. The fluent
// methods edit the definition; Start hands a copy of it to a new Engine, so
// later edits never reach a running engine.
type Pipeline struct {
	startMu sync.Mutex
	mu      sync.Mutex
	def     Definition
	engine  *Engine
	unsub   func()
	signals broadcaster
}

// New returns an empty pipeline with the default buffer size.
func New() *Pipeline {
	return &Pipeline{def: Definition{BufferCapacity: model.DefaultBufferSize}}
}

// FromDefinition wraps an existing definition.
func FromDefinition(def Definition) *Pipeline {
	return &Pipeline{def: def.clone()}
}

// Source sets the source descriptor.
func (p *Pipeline) Source(typ string, config map[string]interface{}) *Pipeline {
	p.mu.Lock()
	p.def.Source = model.Descriptor{Type: typ, Config: config}
	p.mu.Unlock()
	return p
}

// Sink sets the sink descriptor.
func (p *Pipeline) Sink(typ string, config map[string]interface{}) *Pipeline {
	p.mu.Lock()
	p.def.Sink = model.Descriptor{Type: typ, Config: config}
	p.mu.Unlock()
	return p
}

// Filter appends a filter stage.
func (p *Pipeline) Filter(fn Predicate) *Pipeline {
	return p.AddStage(NewFilter(fn))
}

// Transform appends a transform stage.
func (p *Pipeline) Transform(fn Mapper) *Pipeline {
	return p.AddStage(NewTransform(fn))
}

// Aggregate appends an aggregate stage.
func (p *Pipeline) Aggregate(window model.WindowSpec, fn Reducer) *Pipeline {
	return p.AddStage(NewAggregate(window, fn))
}

// AddStage appends a prepared stage.
func (p *Pipeline) AddStage(s Stage) *Pipeline {
	p.mu.Lock()
	p.def.Stages = append(p.def.Stages, s)
	p.mu.Unlock()
	return p
}

// BufferSize sets the processing buffer capacity.
func (p *Pipeline) BufferSize(n int) *Pipeline {
	p.mu.Lock()
	p.def.BufferCapacity = n
	p.mu.Unlock()
	return p
}

// Definition returns a copy of the current definition.
func (p *Pipeline) Definition() Definition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.def.clone()
}

// Engine returns the running engine, or nil before Start.
func (p *Pipeline) Engine() *Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine
}

// BufferLen returns the engine's buffer length, or 0 before Start.
func (p *Pipeline) BufferLen() int {
	if e := p.Engine(); e != nil {
		return e.BufferLen()
	}
	return 0
}

// Subscribe registers fn for pipeline notifications: starting and stopping,
// plus everything the engine emits. Engine notifications are delivered on
// the engine's processing goroutine, and Stop waits for that goroutine, so
// a listener that wants to stop the pipeline (typically on SignalEnd) must
// call Stop from another goroutine.
func (p *Pipeline) Subscribe(fn Listener) func() {
	return p.signals.subscribe(fn)
}

// Start validates the definition and starts an engine for it. Starting a
// pipeline whose engine is running or stopping does nothing; after Stop,
// Start runs the current definition on a fresh engine.
func (p *Pipeline) Start(ctx context.Context, opts ...EngineOption) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	if p.engine != nil {
		if p.engine.State() != StateStopped {
			p.mu.Unlock()
			return nil
		}
		p.unsub()
		p.engine, p.unsub = nil, nil
	}
	def := p.def.clone()
	p.mu.Unlock()

	if err := def.Validate(); err != nil {
		p.signals.emit(Notification{Signal: SignalError, Err: err})
		return err
	}

	p.signals.emit(Notification{Signal: SignalStarting})
	engine := NewEngine(def, opts...)
	unsub := engine.Subscribe(p.signals.emit)
	if err := engine.Start(ctx); err != nil {
		unsub()
		return err
	}

	p.mu.Lock()
	p.engine = engine
	p.unsub = unsub
	p.mu.Unlock()
	return nil
}

// Stop stops the engine, if any.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	engine := p.engine
	p.mu.Unlock()
	if engine == nil || engine.State() != StateRunning {
		return nil
	}
	p.signals.emit(Notification{Signal: SignalStopping})
	return engine.Stop(ctx)
}
