// Package hub fans published messages out to every live subscriber.
//
// Each subscriber owns a bounded queue. Publish never blocks: when a queue is
// full its oldest message is dropped to make room, so a slow subscriber may
// skip messages but never sees them out of order.
package hub

import (
	"sync"
	"sync/atomic"
)

const DefaultCapacity = 256

type Hub struct {
	mu       sync.Mutex
	capacity int
	subs     map[*Subscription]struct{}
	closed   bool
}

// New returns a hub whose subscribers buffer up to capacity messages.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscription receives messages published after it was created.
type Subscription struct {
	hub     *Hub
	ch      chan []byte
	dropped atomic.Uint64
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan []byte, h.capacity)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish relays msg verbatim to every current subscriber. The lock is held for
// the whole fan-out so all subscribers observe one global order.
func (h *Hub) Publish(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		s.offer(msg)
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close unregisters every subscriber and closes their channels. Later
// publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

// offer enqueues msg, evicting the oldest queued messages while the queue is full.
// Called with the hub lock held; the only concurrent actor is the reader.
func (s *Subscription) offer(msg []byte) {
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// C is closed when the subscription or the hub is closed.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Dropped counts messages evicted from this subscriber's queue on overflow.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.hub.remove(s) }
