// Package queue provides an unbounded multi-producer/multi-consumer queue
// whose lifetime is tied to reference-counted sender handles.
//
// A Queue closes once every Sender has been dropped. Receivers drain any
// items still buffered and then observe the close. Work that discovers more
// work (directory traversal) holds a cloned Sender for each pending item, so
// the queue closes exactly when no pending or in-flight item can produce
// another one.
package queue

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned when sending through a Sender that was dropped.
	ErrClosed = errors.New("send on dropped sender")

	// ErrDisconnected is returned when the receiving side has gone away.
	ErrDisconnected = errors.New("receiver has been dropped")
)

// Queue is an unbounded FIFO shared by any number of senders and receivers.
// The zero value is not usable; construct with New.
type Queue[T any] struct {
	items        []T
	mutex        sync.Mutex
	cond         *sync.Cond
	senders      int
	disconnected bool
}

// Sender is a handle that keeps its Queue open until dropped.
type Sender[T any] struct {
	q       *Queue[T]
	dropped bool
}

// New creates a queue together with its first sender.
func New[T any]() (*Queue[T], *Sender[T]) {
	q := &Queue[T]{senders: 1}
	q.cond = sync.NewCond(&q.mutex)
	return q, &Sender[T]{q: q}
}

// Receive blocks until an item is available or the queue is closed and
// drained, in which case ok is false.
func (q *Queue[T]) Receive() (item T, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for len(q.items) == 0 && q.senders > 0 && !q.disconnected {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return item, false
	}

	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Disconnect marks the receiving side as gone. Buffered items are discarded
// and every later Send fails with ErrDisconnected.
func (q *Queue[T]) Disconnect() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.disconnected = true
	q.items = nil
	q.cond.Broadcast()
}

// size reports the number of buffered items.
func (q *Queue[T]) size() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

// closed reports whether every sender has been dropped.
func (q *Queue[T]) closed() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.senders == 0
}

// Send appends item to the queue and wakes one receiver.
func (s *Sender[T]) Send(item T) error {
	q := s.q
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if s.dropped {
		return ErrClosed
	}
	if q.disconnected {
		return ErrDisconnected
	}

	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// Clone returns a new handle on the same queue. Cloning a dropped sender is
// a programming error and panics, since the queue may already be closed.
func (s *Sender[T]) Clone() *Sender[T] {
	q := s.q
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if s.dropped {
		panic("queue: clone of dropped sender")
	}
	q.senders++
	return &Sender[T]{q: q}
}

// Drop releases the handle. Dropping twice is a no-op. When the last sender
// is dropped the queue closes and all blocked receivers wake up.
func (s *Sender[T]) Drop() {
	q := s.q
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if s.dropped {
		return
	}
	s.dropped = true
	q.senders--
	if q.senders == 0 {
		q.cond.Broadcast()
	}
}
