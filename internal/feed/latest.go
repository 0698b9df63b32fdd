// Package feed contains the venue feed engine: one resilient WebSocket task
// per venue, each owning its socket and local book state, publishing the
// latest OrderBook through a single-writer Latest slot.
//
// Both feeds share the same control flow, adapted per venue protocol:
//
//	dial → subscribe → read loop → (error) → publish disconnected →
//	exponential backoff (1s → 30s, reset on a good message) → redial
//
// A heartbeat goroutine scoped to each connection sends application-layer
// pings every 20s; a send failure closes the socket, which funnels the read
// loop into the reconnect path.
package feed

import (
	"sync"

	"dualbook/pkg/types"
)

// Latest is a single-writer, many-reader slot holding the most recently
// published OrderBook. Publish overwrites; readers observe the latest value
// without blocking the writer and never see a partial update. Queued
// delivery is deliberately avoided so consumers can never lag behind the
// feed under bursts.
type Latest struct {
	mu      sync.RWMutex
	book    types.OrderBook
	changed chan struct{}
}

// NewLatest creates an empty slot. Borrow before any Publish returns the
// zero book (empty, disconnected).
func NewLatest() *Latest {
	return &Latest{changed: make(chan struct{})}
}

// Publish replaces the slot's value. Non-blocking; the previous value is
// discarded. Only the owning feed task may call this.
func (l *Latest) Publish(book types.OrderBook) {
	l.mu.Lock()
	l.book = book
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()
}

// Borrow returns the most recently published book. The returned value shares
// its level slices with the slot; callers must treat it as read-only and not
// retain it across ticks.
func (l *Latest) Borrow() types.OrderBook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book
}

// Changed returns a channel closed on the next Publish. Callers that want a
// change notification re-fetch the channel after each wakeup.
func (l *Latest) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}
