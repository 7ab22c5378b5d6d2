// Package backplane carries room events between hub instances.
//
// A single process needs no backplane: the hub delivers locally. When several
// instances serve the same organizations, every instance publishes through
// the backplane and replays every received event into its own hub, so a
// write handled by one instance reaches connections held by another.
package backplane

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// Handler receives every event published on the backplane, including the
// subscriber's own.
type Handler func(room string, e events.Event)

// Backplane is a shared publish/subscribe channel for room events.
type Backplane interface {
	// Publish sends an event to every subscribed instance.
	Publish(ctx context.Context, room string, e events.Event) error
	// Subscribe registers h until ctx is done. It returns once the
	// subscription is active.
	Subscribe(ctx context.Context, h Handler) error
	// Close releases the backplane's resources.
	Close() error
}

// Local is an in-process backplane. Several hubs sharing one Local behave
// like instances sharing a broker.
type Local struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	next     int
	closed   bool
}

// NewLocal creates an in-process backplane.
func NewLocal() *Local {
	return &Local{handlers: make(map[int]Handler)}
}

// Publish calls every subscribed handler synchronously, in subscription order.
func (l *Local) Publish(_ context.Context, room string, e events.Event) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return errors.ErrClosed
	}
	keys := make([]int, 0, len(l.handlers))
	for k := range l.handlers {
		keys = append(keys, k)
	}
	handlers := make([]Handler, 0, len(keys))
	slices.Sort(keys)
	for _, k := range keys {
		handlers = append(handlers, l.handlers[k])
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(room, e)
	}
	return nil
}

// Subscribe registers h until ctx is done.
func (l *Local) Subscribe(ctx context.Context, h Handler) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.ErrClosed
	}
	id := l.next
	l.next++
	l.handlers[id] = h
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}()
	return nil
}

// Subscribers returns the number of active handlers.
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

// Close drops all handlers and rejects further use.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = make(map[int]Handler)
	return nil
}
