// Package audit is the ingestion_log collaborator (spec §6 "Persisted
// state"): an in-process event bus plus a SQLite subscriber that durably
// records snapshot persistence, ticket decisions, and calibration/model
// publication events for later inspection.
package audit

import (
	"sync"

	"github.com/psilali/footy-probengine/internal/telemetry"
)

// Handler processes an event. Returning an error logs it but does not stop
// dispatch to the remaining handlers.
type Handler func(Event) error

// Bus is a synchronous in-process event bus. Subscribers are invoked in
// registration order on the publisher's goroutine; handlers that need to
// do I/O should hand off to their own goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(e); err != nil {
			telemetry.Warnf("audit handler for %s: %v", e.Type, err)
		}
	}
}
