// Package eventbus provides fire-and-forget publication of engine lifecycle
// and operational events
package eventbus

import (
	"context"
	"sync"

	"mm_engine/internal/core"
)

// Sink receives published events. Sink implementations must not block; slow
// sinks drop events rather than stall trading code paths.
type Sink interface {
	Deliver(ctx context.Context, event core.Event)
}

// Bus fans events out to registered sinks and channel subscribers. Publish
// never blocks and never surfaces errors to the caller.
type Bus struct {
	logger core.ILogger

	mu          sync.RWMutex
	sinks       []Sink
	subscribers []chan core.Event
	bufferSize  int
}

// NewBus creates an event bus with the given subscriber channel buffer size
func NewBus(bufferSize int, logger core.ILogger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		logger:     logger.WithField("component", "event_bus"),
		bufferSize: bufferSize,
	}
}

// AddSink registers a delivery sink
func (b *Bus) AddSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Subscribe returns a channel receiving all subsequent events. Events are
// dropped for subscribers whose buffer is full.
func (b *Bus) Subscribe() <-chan core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan core.Event, b.bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the event to all sinks and subscribers without blocking
func (b *Bus) Publish(ctx context.Context, event core.Event) {
	b.mu.RLock()
	sinks := b.sinks
	subscribers := b.subscribers
	b.mu.RUnlock()

	for _, sink := range sinks {
		sink.Deliver(ctx, event)
	}

	for _, sub := range subscribers {
		select {
		case sub <- event:
		default:
			b.logger.Warn("Event subscriber channel full, dropping event",
				"event_type", event.Type)
		}
	}
}

// Close closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}
