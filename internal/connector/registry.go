// Package connector provides the built-in sources and sinks and the
// registry that maps descriptor types to them.
package connector

import (
	"sort"
	"strings"
	"sync"

	"streamsynth/internal/model"
)

// Registry maps connector type names to factories.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]model.SourceFactory
	sinks   map[string]model.SinkFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]model.SourceFactory),
		sinks:   make(map[string]model.SinkFactory),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry holding every built-in connector.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// RegisterBuiltins adds the built-in connectors to r.
func RegisterBuiltins(r *Registry) {
	r.RegisterSource("file", NewFileSource)
	r.RegisterSource("http", NewHTTPSource)
	r.RegisterSource("memory", NewMemorySourceFromConfig)
	r.RegisterSource("kafka", NewKafkaSource)
	r.RegisterSource("redis", NewRedisSource)

	r.RegisterSink("file", NewFileSink)
	r.RegisterSink("console", NewConsoleSink)
	r.RegisterSink("memory", NewMemorySinkFromConfig)
	r.RegisterSink("kafka", NewKafkaSink)
	r.RegisterSink("redis", NewRedisSink)
	r.RegisterSink("sqlite", NewSQLiteSink)
}

// RegisterSource adds or replaces a source factory.
func (r *Registry) RegisterSource(typ string, f model.SourceFactory) {
	r.mu.Lock()
	r.sources[strings.ToLower(typ)] = f
	r.mu.Unlock()
}

// RegisterSink adds or replaces a sink factory.
func (r *Registry) RegisterSink(typ string, f model.SinkFactory) {
	r.mu.Lock()
	r.sinks[strings.ToLower(typ)] = f
	r.mu.Unlock()
}

// NewSource builds the source described by d.
func (r *Registry) NewSource(d model.Descriptor) (model.Source, error) {
	r.mu.RLock()
	f, ok := r.sources[strings.ToLower(d.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, &model.UnknownConnectorError{Role: "source", Type: d.Type}
	}
	src, err := f(configOf(d))
	if err != nil {
		return nil, &model.ConnectorInitError{Role: "source", Type: d.Type, Err: err}
	}
	return src, nil
}

// NewSink builds the sink described by d.
func (r *Registry) NewSink(d model.Descriptor) (model.Sink, error) {
	r.mu.RLock()
	f, ok := r.sinks[strings.ToLower(d.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, &model.UnknownConnectorError{Role: "sink", Type: d.Type}
	}
	sink, err := f(configOf(d))
	if err != nil {
		return nil, &model.ConnectorInitError{Role: "sink", Type: d.Type, Err: err}
	}
	return sink, nil
}

// SourceTypes lists the registered source types.
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// SinkTypes lists the registered sink types.
func (r *Registry) SinkTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sinks)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func configOf(d model.Descriptor) map[string]interface{} {
	if d.Config == nil {
		return map[string]interface{}{}
	}
	return d.Config
}
