package sink

import (
	"context"

	"batchpub/internal/pub"
)

// Func adapts a plain function to pub.Sink.
type Func func(ctx context.Context, events []pub.Event) error

// Publish implements pub.Sink.
func (f Func) Publish(ctx context.Context, events []pub.Event) error {
	return f(ctx, events)
}
