package events

import (
	"errors"
	"sync"
)

// EventEmitter is a fire-and-forget sink for page events.
// Write failures are logged by the implementation, never returned.
type EventEmitter interface {
	Emit(event *PageEvent)
	Close() error
}

// NoopEmitter discards events. Used when event logging is disabled.
type NoopEmitter struct{}

func (NoopEmitter) Emit(*PageEvent) {}

func (NoopEmitter) Close() error { return nil }

// MemoryEmitter keeps events in memory
type MemoryEmitter struct {
	mu     sync.Mutex
	events []*PageEvent
}

func (m *MemoryEmitter) Emit(event *PageEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MemoryEmitter) Close() error { return nil }

// Events returns a copy of the recorded events
func (m *MemoryEmitter) Events() []*PageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*PageEvent(nil), m.events...)
}

// MultiEmitter dispatches events to several emitters
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(event *PageEvent) {
	for _, e := range m {
		e.Emit(event)
	}
}

// Close closes every emitter and joins their errors
func (m MultiEmitter) Close() error {
	var errs []error
	for _, e := range m {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
