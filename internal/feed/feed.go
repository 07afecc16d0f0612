// Package feed broadcasts change notifications for task records.
//
// Events only signal that something changed. Delivery is best effort: a
// subscriber that falls behind loses events and is expected to reconcile
// by reloading.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the row operation that produced an event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Tables that emit events.
const (
	TableTasks          = "tasks"
	TableChangeRequests = "change_requests"
)

// Event is one change notification.
type Event struct {
	ID    string    `json:"id"`
	Kind  Kind      `json:"kind"`
	Table string    `json:"table"`
	RowID string    `json:"row_id"`
	At    time.Time `json:"at"`
}

// NewEvent stamps a task-table event.
func NewEvent(kind Kind, rowID string) Event {
	return NewTableEvent(TableTasks, kind, rowID)
}

// NewTableEvent stamps an event for any table.
func NewTableEvent(table string, kind Kind, rowID string) Event {
	return Event{
		ID:    uuid.New().String(),
		Kind:  kind,
		Table: table,
		RowID: rowID,
		At:    time.Now().UTC(),
	}
}

// Publisher accepts change events.
type Publisher interface {
	Publish(Event)
}

// Subscription is an active feed subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// NewSubscription wraps a channel and its cancel func.
func NewSubscription(events <-chan Event, cancel func()) Subscription {
	return Subscription{Events: events, cancel: cancel}
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

const defaultBufferSize = 64

// Option customizes Hub construction.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber channel capacity.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	bufferSize  int
	dropped     uint64
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// NewHub constructs a hub with default buffering.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscribers: map[*subscriber]struct{}{},
		bufferSize:  defaultBufferSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Publish delivers ev to every subscriber without blocking. Subscribers
// with a full buffer miss the event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.ch <- ev:
		default:
			h.dropped++
		}
	}
}

// Subscribe registers a subscriber. The subscription ends when ctx is done
// or Close is called; either way the channel is closed.
func (h *Hub) Subscribe(ctx context.Context) (Subscription, error) {
	sub := &subscriber{ch: make(chan Event, h.bufferSize)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			delete(h.subscribers, sub)
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return NewSubscription(sub.ch, cancel), nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped reports how many deliveries were skipped on full buffers.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
