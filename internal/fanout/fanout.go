// Package fanout implements a single-producer multi-consumer broadcast with
// bounded per-subscriber buffers. A slow subscriber never blocks the
// publisher: when its buffer is full the oldest message is dropped and the
// subscriber is handed a LagError with the number of missed messages on its
// next receive, after which it resumes from the newest data.
package fanout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"shipwars/internal/protocol"
)

// ErrClosed is returned by Recv after the broadcaster has shut down.
var ErrClosed = errors.New("fanout: broadcaster closed")

// LagError reports how many messages a slow subscriber missed.
type LagError struct {
	Count uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("fanout: subscriber lagged by %d messages", e.Count)
}

// Broadcaster distributes server messages to any number of subscribers.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

// Subscription is one subscriber's receive handle.
type Subscription struct {
	b      *Broadcaster
	ch     chan protocol.ServerMsg
	lagged uint64 // atomic
	done   bool   // guarded by b.mu
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up to
// capacity messages.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity < 1 {
		capacity = 1
	}
	return &Broadcaster{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed broadcaster
// yields a subscription whose Recv immediately returns ErrClosed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{
		b:  b,
		ch: make(chan protocol.ServerMsg, b.capacity),
	}
	if b.closed {
		s.done = true
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Send delivers msg to every subscriber without blocking. Full subscriber
// buffers drop their oldest entry and accumulate a lag count.
func (b *Broadcaster) Send(msg protocol.ServerMsg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- msg:
			continue
		default:
		}
		// Buffer full: evict the oldest message, count the loss.
		select {
		case <-s.ch:
			atomic.AddUint64(&s.lagged, 1)
		default:
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close terminates all subscriptions. Pending buffered messages are still
// delivered before subscribers see ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.done = true
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}

// Recv blocks until a message arrives, the subscriber is found to be
// lagging, or the broadcaster closes. After a LagError the subscriber
// continues from the newest buffered message.
func (s *Subscription) Recv() (protocol.ServerMsg, error) {
	if n := atomic.SwapUint64(&s.lagged, 0); n > 0 {
		return nil, &LagError{Count: n}
	}
	msg, ok := <-s.ch
	if !ok {
		return nil, ErrClosed
	}
	return msg, nil
}

// TryRecv is a non-blocking receive. ok is false when no message is ready.
func (s *Subscription) TryRecv() (msg protocol.ServerMsg, err error, ok bool) {
	if n := atomic.SwapUint64(&s.lagged, 0); n > 0 {
		return nil, &LagError{Count: n}, true
	}
	select {
	case m, open := <-s.ch:
		if !open {
			return nil, ErrClosed, true
		}
		return m, nil, true
	default:
		return nil, nil, false
	}
}

// Close detaches the subscription from its broadcaster.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	delete(s.b.subs, s)
	close(s.ch)
}
