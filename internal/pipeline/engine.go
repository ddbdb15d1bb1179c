package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"streamsynth/internal/connector"
	"streamsynth/internal/model"
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConnectorRegistry builds sources and sinks from descriptors.
type ConnectorRegistry interface {
	NewSource(d model.Descriptor) (model.Source, error)
	NewSink(d model.Descriptor) (model.Sink, error)
}

const defaultQueueSize = 256

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegistry sets the connector registry. Defaults to connector.Default().
func WithRegistry(r ConnectorRegistry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the clock used by time windows.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithSpilloverDir sets the spillover directory. Defaults to
// .streamsynth-spillover under the working directory.
func WithSpilloverDir(dir string) EngineOption {
	return func(e *Engine) { e.spillDir = dir }
}

// WithQueueSize sets how many source emissions may wait for processing
// before the source blocks.
func WithQueueSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

type itemKind int

const (
	itemData itemKind = iota
	itemEnd
	itemError
)

type item struct {
	kind  itemKind
	event model.Event
	err   error
}

// Engine executes one Definition. Source emissions are queued and handled
// by a single goroutine, so the stage chain, the sink write and the
// spillover check for one event complete before the next event starts.
type Engine struct {
	def       Definition
	registry  ConnectorRegistry
	log       *zap.Logger
	clock     clock.Clock
	spillDir  string
	queueSize int

	mu     sync.Mutex
	state  State
	source model.Source
	sink   model.Sink
	cancel context.CancelFunc
	runCtx context.Context
	queue  chan item
	quit   chan struct{}
	done   chan struct{}

	// proc serializes event handling with administrative reloads.
	proc    sync.Mutex
	buffer  *Buffer
	windows map[int]*WindowedAggregator
	spill   *Spillover

	signals broadcaster
}

// NewEngine creates an idle engine for def.
func NewEngine(def Definition, opts ...EngineOption) *Engine {
	e := &Engine{
		def:       def.clone(),
		log:       zap.NewNop(),
		clock:     clock.New(),
		queueSize: defaultQueueSize,
		buffer:    NewBuffer(),
		windows:   make(map[int]*WindowedAggregator),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = connector.Default()
	}
	e.log = e.log.With(zap.String("component", "engine"))
	e.signals.onPanic = func(r interface{}) {
		e.log.Error("listener panicked", zap.Any("panic", r))
	}
	e.spill = NewSpillover(e.spillDir, e.log)
	for i, s := range e.def.Stages {
		if s.Kind == KindAggregate {
			e.windows[i] = NewWindowedAggregator(s.Window, e.clock)
		}
	}
	return e
}

// Subscribe registers fn for every notification and returns a function
// that removes it. See Pipeline.Subscribe about calling Stop from fn.
func (e *Engine) Subscribe(fn Listener) func() {
	return e.signals.subscribe(fn)
}

// Definition returns the definition the engine runs.
func (e *Engine) Definition() Definition {
	return e.def
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BufferLen returns the number of events held in memory.
func (e *Engine) BufferLen() int {
	return e.buffer.Len()
}

// Pending returns the spillover batches currently on disk.
func (e *Engine) Pending() []model.SpilloverRecord {
	return e.spill.Pending()
}

// SpilloverDir returns where spillover files are written.
func (e *Engine) SpilloverDir() string {
	return e.spill.Dir()
}

// Start builds the connectors, begins processing and starts the source.
// Calling Start on an engine that is not idle does nothing.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil
	}
	e.state = StateInitializing
	e.mu.Unlock()

	if err := e.start(ctx); err != nil {
		e.setState(StateIdle)
		e.log.Error("failed to start pipeline", zap.Error(err))
		e.signals.emit(Notification{Signal: SignalError, Err: err})
		return err
	}

	e.mu.Lock()
	e.state = StateRunning
	runCtx := e.runCtx
	e.mu.Unlock()
	e.log.Info("pipeline started",
		zap.Stringer("source", e.def.Source),
		zap.Stringer("sink", e.def.Sink),
		zap.Int("stages", len(e.def.Stages)),
		zap.Int("buffer_size", e.def.BufferCapacity),
	)
	e.signals.emit(Notification{Signal: SignalStarted})

	// Emissions made while the source was starting wait in the queue, so
	// started is always the first notification after starting.
	go e.run(runCtx)
	return nil
}

func (e *Engine) start(ctx context.Context) error {
	if err := e.def.Validate(); err != nil {
		return err
	}
	source, err := e.registry.NewSource(e.def.Source)
	if err != nil {
		return err
	}
	sink, err := e.registry.NewSink(e.def.Sink)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.source = source
	e.sink = sink
	e.cancel = cancel
	e.runCtx = runCtx
	e.queue = make(chan item, e.queueSize)
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	e.mu.Unlock()

	if err := source.Start(runCtx, &emitter{e: e}); err != nil {
		close(e.quit)
		cancel()
		if cerr := sink.Close(ctx); cerr != nil {
			e.log.Warn("failed to close sink", zap.Error(cerr))
		}
		return &model.ConnectorInitError{Role: "source", Type: e.def.Source.Type, Err: err}
	}
	return nil
}

// Stop stops the source, waits for the event in flight, closes the sink and
// deletes pending spillover files. Spilled events are discarded, not
// replayed. Stop on an engine that is not running does nothing.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	source, sink := e.source, e.sink
	e.mu.Unlock()

	var errs []error
	if err := source.Stop(ctx); err != nil {
		e.log.Warn("failed to stop source", zap.Error(err))
		errs = append(errs, fmt.Errorf("stop source: %w", err))
	}

	close(e.quit)
	select {
	case <-e.done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for in-flight event: %w", ctx.Err()))
	}
	e.cancel()

	if err := sink.Close(ctx); err != nil {
		e.log.Warn("failed to close sink", zap.Error(err))
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}

	e.proc.Lock()
	pending := len(e.spill.Pending())
	for _, err := range e.spill.Discard() {
		e.reportError(err, nil)
	}
	e.proc.Unlock()

	e.setState(StateStopped)
	e.log.Info("pipeline stopped", zap.Int("discarded_spillover_files", pending), zap.Int("buffered", e.buffer.Len()))
	e.signals.emit(Notification{Signal: SignalStopped})
	return errors.Join(errs...)
}

// Reload moves the oldest spillover batch back into the buffer. It reports
// false when nothing was pending. Failures are also emitted as error
// notifications.
func (e *Engine) Reload() (bool, error) {
	e.proc.Lock()
	defer e.proc.Unlock()
	ok, err := e.spill.Reload(e.buffer)
	if err != nil {
		e.reportError(err, nil)
	}
	return ok, err
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case it := <-e.queue:
			select {
			case <-e.quit:
				return
			default:
			}
			e.handle(ctx, it)
		}
	}
}

func (e *Engine) handle(ctx context.Context, it item) {
	switch it.kind {
	case itemData:
		e.proc.Lock()
		e.processEvent(ctx, it.event)
		e.checkSpillover()
		e.proc.Unlock()
	case itemEnd:
		e.proc.Lock()
		e.flush(ctx)
		e.proc.Unlock()
		e.log.Info("source finished")
		e.signals.emit(Notification{Signal: SignalEnd})
	case itemError:
		e.reportError(it.err, nil)
	}
}

// processEvent runs the stage chain for one event. A failing stage is
// reported and skipped: the next stage sees the value from before it.
func (e *Engine) processEvent(ctx context.Context, ev model.Event) {
	current := ev
	for i, stage := range e.def.Stages {
		switch stage.Kind {
		case KindFilter:
			keep, err := stage.filter(current)
			if err != nil {
				e.reportError(&model.ProcessorError{Stage: i, Kind: stage.Kind.String(), Err: err}, current)
				continue
			}
			if !keep {
				e.signals.emit(Notification{Signal: SignalFiltered, Event: ev})
				return
			}
		case KindTransform:
			out, err := stage.transform(current)
			if err != nil {
				e.reportError(&model.ProcessorError{Stage: i, Kind: stage.Kind.String(), Err: err}, current)
				continue
			}
			if out == nil {
				return
			}
			current = out
		case KindAggregate:
			e.buffer.Push(current)
			if !e.windows[i].Ready(e.buffer) {
				return
			}
			out, err := stage.reduce(e.buffer.Snapshot())
			if err != nil {
				e.reportError(&model.ProcessorError{Stage: i, Kind: stage.Kind.String(), Err: err}, current)
				continue
			}
			e.buffer.Clear()
			if out == nil {
				return
			}
			current = out
		}
	}
	e.write(ctx, current)
}

// flush reduces whatever is left in the buffer once the source has ended.
func (e *Engine) flush(ctx context.Context) {
	for i, stage := range e.def.Stages {
		if stage.Kind != KindAggregate || e.buffer.Len() == 0 {
			continue
		}
		out, err := stage.reduce(e.buffer.Snapshot())
		if err != nil {
			e.reportError(&model.ProcessorError{Stage: i, Kind: stage.Kind.String(), Err: err}, nil)
			continue
		}
		e.buffer.Clear()
		if out != nil {
			e.write(ctx, out)
		}
	}
}

func (e *Engine) write(ctx context.Context, ev model.Event) {
	if err := e.sink.Write(ctx, ev); err != nil {
		e.reportError(&model.SinkError{Err: err}, ev)
		return
	}
	e.signals.emit(Notification{Signal: SignalProcessed, Event: ev})
}

func (e *Engine) checkSpillover() {
	rec, err := e.spill.Check(e.buffer, e.def.BufferCapacity)
	if err != nil {
		e.reportError(err, nil)
		return
	}
	if rec != nil {
		e.signals.emit(Notification{Signal: SignalSpillover, File: rec.FilePath, Count: rec.Count})
	}
}

func (e *Engine) reportError(err error, ev model.Event) {
	e.log.Warn("event error", zap.String("kind", model.ErrorKind(err)), zap.Error(err))
	e.signals.emit(Notification{Signal: SignalError, Err: err, Event: ev})
}

// emitter adapts source callbacks onto the engine queue. Emissions made
// after Stop are dropped.
type emitter struct {
	e *Engine
}

func (em *emitter) send(it item) {
	select {
	case em.e.queue <- it:
	case <-em.e.quit:
	}
}

func (em *emitter) Data(ev model.Event) { em.send(item{kind: itemData, event: ev}) }
func (em *emitter) End()                { em.send(item{kind: itemEnd}) }
func (em *emitter) Error(err error)     { em.send(item{kind: itemError, err: err}) }
