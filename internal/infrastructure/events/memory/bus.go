// Package memory is the in-process workflow event bus. Publish never blocks;
// a single dispatcher goroutine delivers events to handlers in publish order.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
)

const DefaultBufferSize = 256

// HandlerFunc adapts a function to ports.EventHandler.
type HandlerFunc func(ctx context.Context, event domain.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

type subscriber struct {
	name    string
	handler ports.EventHandler
}

type Bus struct {
	logger *slog.Logger
	queue  chan domain.Event
	done   chan struct{}

	mu          sync.RWMutex
	subscribers []subscriber
	closed      bool
	closeOnce   sync.Once
}

func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		logger: logger,
		queue:  make(chan domain.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers handler under name. Handlers added later do not see
// earlier events.
func (b *Bus) Subscribe(name string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: handler})
}

// Publish enqueues event. A full buffer drops the event and reports
// ErrTemporary.
func (b *Bus) Publish(_ context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return domain.WrapError(domain.ErrTemporary, "publish event", fmt.Errorf("bus closed"))
	}
	select {
	case b.queue <- event:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "publish event", fmt.Errorf("buffer full, dropped %s", event.Type))
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
	})
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for event := range b.queue {
		b.mu.RLock()
		subscribers := make([]subscriber, len(b.subscribers))
		copy(subscribers, b.subscribers)
		b.mu.RUnlock()

		for _, sub := range subscribers {
			b.deliver(sub, event)
		}
	}
}

func (b *Bus) deliver(sub subscriber, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event_handler_panic", "handler", sub.name, "type", event.Type, "panic", r)
		}
	}()

	if err := sub.handler.HandleEvent(context.Background(), event); err != nil {
		b.logger.Warn("event_handler_failed",
			"handler", sub.name,
			"session_id", event.SessionID,
			"type", event.Type,
			"error", err,
		)
	}
}
