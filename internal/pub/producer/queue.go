package producer

import (
	"sync"

	"batchpub/internal/pub"
)

// message pairs a submitted event with the function resolving its delivery.
type message struct {
	event   pub.Event
	resolve pub.ResolveFunc
}

// queue is the inbound multi-producer, single-consumer queue. Writers never block:
// tryEnqueue either accepts, reports pub.ErrQueueFull or reports pub.ErrStopped.
type queue struct {
	mu       sync.Mutex
	items    []message
	head     int
	capacity int // 0 is unbounded
	closed   bool

	// holds at most one wake-up token for the consumer
	notify chan struct{}
}

func newQueue(capacity int) *queue {
	return &queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

func (q *queue) tryEnqueue(m message) error {
	q.mu.Lock()
	switch {
	case q.closed:
		q.mu.Unlock()
		return pub.ErrStopped
	case q.capacity > 0 && len(q.items)-q.head >= q.capacity:
		q.mu.Unlock()
		return pub.ErrQueueFull
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

func (q *queue) tryDequeue() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return message{}, false
	}

	m := q.items[q.head]
	q.items[q.head] = message{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= 1024 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return m, true
}

// ready yields when something may have been enqueued since the last wake-up.
// Wake-ups can be spurious.
func (q *queue) ready() <-chan struct{} {
	return q.notify
}

// close rejects all further writes and hands back everything still queued.
// Only the first call returns items.
func (q *queue) close() []message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	rest := q.items[q.head:]
	q.items = nil
	q.head = 0

	return rest
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}
