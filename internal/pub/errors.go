package pub

import "errors"

var (
	// ErrStopped is returned by Submit once a producer has terminated and no longer
	// accepts messages. A new producer has to be constructed to resume publishing.
	ErrStopped = errors.New("producer stopped")

	// ErrQueueFull is returned by Submit when a bounded inbound queue is at capacity.
	// The caller decides whether to retry, drop or propagate.
	ErrQueueFull = errors.New("producer queue full")

	// ErrCancelled is the outcome of deliveries that were still pending when the
	// producer shut down.
	ErrCancelled = errors.New("delivery cancelled")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)
