package events

import (
	"sync"

	"staychain/core/types"
)

// Buffer collects events emitted while a transaction executes. The node drains
// it after commit and drops it on rollback, so subscribers never observe
// events for state that was not persisted.
type Buffer struct {
	mu     sync.Mutex
	events []types.Event
}

// Emit implements Emitter. Events without a canonical payload are ignored.
func (b *Buffer) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, payload.Event().Clone())
	b.mu.Unlock()
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
