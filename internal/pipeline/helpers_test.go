package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamsynth/internal/connector"
	"streamsynth/internal/model"
)

// fixedRegistry hands out prepared connector instances.
type fixedRegistry struct {
	source model.Source
	sink   model.Sink
}

func (r *fixedRegistry) NewSource(model.Descriptor) (model.Source, error) { return r.source, nil }
func (r *fixedRegistry) NewSink(model.Descriptor) (model.Sink, error)     { return r.sink, nil }

type failingSource struct{}

func (failingSource) Start(context.Context, model.Emitter) error { return errors.New("connection refused") }
func (failingSource) Stop(context.Context) error                 { return nil }

type failingSink struct{ connector.MemorySink }

func (*failingSink) Write(context.Context, model.Event) error { return errors.New("disk full") }

// collector records notifications and exposes the end of the source.
type collector struct {
	mu    sync.Mutex
	all   []Notification
	ended chan struct{}
	once  sync.Once
}

func newCollector() *collector {
	return &collector{ended: make(chan struct{})}
}

func (c *collector) handle(n Notification) {
	c.mu.Lock()
	c.all = append(c.all, n)
	c.mu.Unlock()
	if n.Signal == SignalEnd {
		c.once.Do(func() { close(c.ended) })
	}
}

func (c *collector) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-c.ended:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not end")
	}
}

func (c *collector) of(sig Signal) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Notification
	for _, n := range c.all {
		if n.Signal == sig {
			out = append(out, n)
		}
	}
	return out
}

func (c *collector) signals() []Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Signal, len(c.all))
	for i, n := range c.all {
		out[i] = n.Signal
	}
	return out
}

func records(pairs ...interface{}) []model.Event {
	out := make([]model.Event, 0, len(pairs))
	for _, v := range pairs {
		out = append(out, map[string]interface{}{"value": v})
	}
	return out
}

// runToEnd starts p against events and waits until the source has ended.
func runToEnd(t *testing.T, p *Pipeline, events []model.Event, opts ...EngineOption) (*connector.MemorySink, *collector) {
	t.Helper()
	sink := connector.NewMemorySink()
	c := newCollector()
	p.Subscribe(c.handle)

	reg := &fixedRegistry{source: connector.NewMemorySource(events, 0), sink: sink}
	opts = append([]EngineOption{WithRegistry(reg), WithSpilloverDir(t.TempDir())}, opts...)
	if err := p.Start(context.Background(), opts...); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.waitEnd(t)
	return sink, c
}

func memoryPipeline() *Pipeline {
	return New().Source("memory", nil).Sink("memory", nil)
}
