// Package events fans log entries out to their side effects exactly once.
//
// Producers publish on a Bus. A single Dispatcher subscribes, drops
// duplicates and runs each side effect (registry, selector refresh,
// presenter line, console mirror) in isolation.
package events

import (
	"sync"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// Event is one appended entry and the page it belongs to.
type Event struct {
	Entry   logstore.Entry
	PageKey string
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events to at most one handler. Deliveries never overlap: an
// event published from inside the handler is queued and delivered after
// the current one returns.
type Bus struct {
	mu       sync.Mutex
	handler  Handler
	queue    []Event
	draining bool
}

var (
	defaultBus  *Bus
	defaultOnce sync.Once
)

// Default returns the process-wide bus, created on first use.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = NewBus()
	})
	return defaultBus
}

// NewBus returns a bus with no subscriber.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h. It returns false, leaving the existing handler in
// place, if the bus already has one.
func (b *Bus) Subscribe(h Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler != nil || h == nil {
		return false
	}
	b.handler = h
	return true
}

// Subscribed reports whether a handler is registered.
func (b *Bus) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler != nil
}

// Publish delivers ev. If another delivery is in progress, ev is queued
// and handed to the goroutine already draining the queue.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		h := b.handler
		b.mu.Unlock()
		if h != nil {
			deliver(h, next)
		}
		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

func deliver(h Handler, ev Event) {
	defer func() { _ = recover() }()
	h(ev)
}
