// Package eventbus provides an in-process pub/sub bus for UI events.
// The bridge publishes state changes and notifications; subscribers such as
// websocket sessions receive them asynchronously.
package eventbus

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/matthewbaird/pvbridge/internal/uistate"
)

// Handler processes an event. Handlers are called from the bus goroutine
// only.
type Handler interface {
	HandleEvent(ctx context.Context, evt uistate.Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt uistate.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt uistate.Event) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer goroutine,
// so every subscriber sees events in publication order.
type Bus struct {
	logger logr.Logger

	mu          sync.RWMutex
	subscribers []namedHandler
	closed      bool

	events chan uistate.Event
	done   chan struct{}
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(logger logr.Logger, bufSize int) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		logger: logger.WithName("eventbus"),
		events: make(chan uistate.Event, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler. Subscribing twice under the same
// name replaces the first handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subscribers {
		if b.subscribers[i].name == name {
			b.subscribers[i].handler = h
			return
		}
	}
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Unsubscribe removes the named handler.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subscribers {
		if b.subscribers[i].name == name {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full
// or the bus is stopped the event is dropped.
func (b *Bus) Publish(evt uistate.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Info("Buffer full, dropping event", "kind", evt.Kind, "name", evt.Name)
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				// Drain remaining events before exiting.
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, evt uistate.Event) {
	b.mu.RLock()
	subs := append([]namedHandler(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Error(err, "Handler failed", "subscriber", s.name, "event", evt.Name)
		}
	}
}

var _ uistate.Publisher = (*Bus)(nil)
