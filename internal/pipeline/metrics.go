package pipeline

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"streamsynth/internal/model"
)

// Metrics exports engine notifications as prometheus series.
type Metrics struct {
	processed      prometheus.Counter
	filtered       prometheus.Counter
	errors         *prometheus.CounterVec
	spillFiles     prometheus.Counter
	spillEvents    prometheus.Counter
	bufferedEvents prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "events_processed_total",
			Help:      "Events written to the sink",
		}),
		filtered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "events_filtered_total",
			Help:      "Events rejected by a filter stage",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Errors reported by the engine, by kind",
		}, []string{"kind"}),
		spillFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "spillover_files_total",
			Help:      "Spillover files written",
		}),
		spillEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "spillover_events_total",
			Help:      "Events moved from memory to spillover files",
		}),
		bufferedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamsynth",
			Subsystem: "engine",
			Name:      "buffer_events",
			Help:      "Events held in the processing buffer",
		}),
	}

	if reg == nil {
		return m
	}
	m.processed = register(reg, m.processed)
	m.filtered = register(reg, m.filtered)
	m.errors = register(reg, m.errors)
	m.spillFiles = register(reg, m.spillFiles)
	m.spillEvents = register(reg, m.spillEvents)
	m.bufferedEvents = register(reg, m.bufferedEvents)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// BufferedSubscriber is a notification source that can report its buffer
// length. Both Engine and Pipeline satisfy it.
type BufferedSubscriber interface {
	Subscriber
	BufferLen() int
}

// Attach subscribes m to s. The buffer gauge is refreshed on every
// notification.
func (m *Metrics) Attach(s BufferedSubscriber) func() {
	return s.Subscribe(func(n Notification) {
		m.Handle(n)
		m.bufferedEvents.Set(float64(s.BufferLen()))
	})
}

// Handle records one notification.
func (m *Metrics) Handle(n Notification) {
	switch n.Signal {
	case SignalProcessed:
		m.processed.Inc()
	case SignalFiltered:
		m.filtered.Inc()
	case SignalError:
		m.errors.WithLabelValues(model.ErrorKind(n.Err)).Inc()
	case SignalSpillover:
		m.spillFiles.Inc()
		m.spillEvents.Add(float64(n.Count))
	}
}
