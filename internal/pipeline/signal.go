package pipeline

import (
	"sort"
	"sync"

	"streamsynth/internal/model"
)

// Signal names a lifecycle or per-event notification.
type Signal string

const (
	SignalStarting  Signal = "starting"
	SignalStarted   Signal = "started"
	SignalProcessed Signal = "processed"
	SignalFiltered  Signal = "filtered"
	SignalError     Signal = "error"
	SignalSpillover Signal = "spillover"
	SignalEnd       Signal = "end"
	SignalStopping  Signal = "stopping"
	SignalStopped   Signal = "stopped"
)

// Notification carries a signal and its payload. Only the fields relevant
// to the signal are set: Event for processed/filtered, Err for error, File
// and Count for spillover.
type Notification struct {
	Signal Signal
	Event  model.Event
	Err    error
	File   string
	Count  int
}

// Listener receives notifications. Engine listeners run on the engine's
// processing goroutine, one at a time, and must not call Stop
// directly; start a goroutine for it.
type Listener func(Notification)

type broadcaster struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	onPanic   func(interface{})
}

func (b *broadcaster) subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) emit(n Notification) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.call(fn, n)
	}
}

func (b *broadcaster) call(fn Listener, n Notification) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(r)
		}
	}()
	fn(n)
}
