package pipeline

import (
	"sync"

	"streamsynth/internal/model"
)

// Buffer is the processing buffer shared by every aggregate stage of a
// pipeline. It holds events oldest first.
type Buffer struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Push appends ev at the newest end.
func (b *Buffer) Push(ev model.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Oldest returns the oldest event, or nil when empty.
func (b *Buffer) Oldest() model.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[0]
}

// Snapshot returns a copy of the buffered events.
func (b *Buffer) Snapshot() []model.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Head returns a copy of the n oldest events.
func (b *Buffer) Head(n int) []model.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > len(b.events) {
		n = len(b.events)
	}
	out := make([]model.Event, n)
	copy(out, b.events[:n])
	return out
}

// DropHead removes the n oldest events.
func (b *Buffer) DropHead(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n >= len(b.events) {
		b.events = nil
		return
	}
	rest := make([]model.Event, len(b.events)-n)
	copy(rest, b.events[n:])
	b.events = rest
}

// Prepend inserts evs before the current oldest event, keeping their order.
func (b *Buffer) Prepend(evs []model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]model.Event, 0, len(evs)+len(b.events))
	merged = append(merged, evs...)
	merged = append(merged, b.events...)
	b.events = merged
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
