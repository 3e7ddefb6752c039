package pub

import "context"

// Producer defines the interface for submitting events to a topic.
type Producer interface {
	// Submit enqueues an event without blocking and returns its delivery handle.
	// It fails with ErrStopped once the producer terminated and with ErrQueueFull
	// when a bounded queue is at capacity.
	Submit(ctx context.Context, e Event) (*Delivery, error)

	// Shutdown stops the producer and waits until every accepted event resolved.
	Shutdown(ctx context.Context) error
}
