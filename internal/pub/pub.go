// Package pub holds the domain types shared by the batching producer, the
// downstream sinks and the storage controller.
package pub

import "context"

// Event is what callers submit. Producers never look inside it.
type Event struct {
	// Type names the event, e.g. "order.created".
	Type string `json:"type"`
	// Payload must be JSON serializable when the sink stores it.
	Payload any `json:"payload"`
}

// Sink delivers a batch of events downstream, typically to a topic. The batch is
// atomic from the producer's point of view: one returned error fails every event in it.
// Sinks perform their own I/O and timeouts; the producer never retries a failed call.
// The events slice is reused once Publish returns and must not be retained.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}
