package pub

import (
	"context"
	"sync"
)

// Status is the resolution state of a Delivery.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Delivery is the completion handle of a single submitted event. It is resolved
// exactly once, by the producer loop, to succeeded, failed or cancelled.
type Delivery struct {
	once   sync.Once
	done   chan struct{}
	status Status
	err    error
}

// ResolveFunc moves a Delivery to status, with err as the cause reported by Err and
// Wait. Calls after the first one are no-ops and report false.
type ResolveFunc func(status Status, err error) bool

// NewDelivery returns a pending delivery together with the only function able to
// resolve it.
func NewDelivery() (*Delivery, ResolveFunc) {
	d := &Delivery{done: make(chan struct{})}
	return d, d.resolve
}

func (d *Delivery) resolve(status Status, err error) bool {
	resolved := false
	d.once.Do(func() {
		d.status = status
		d.err = err
		close(d.done)
		resolved = true
	})

	return resolved
}

// Done is closed once the delivery has been resolved.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Status reports the current state without blocking.
func (d *Delivery) Status() Status {
	select {
	case <-d.done:
		return d.status
	default:
		return StatusPending
	}
}

// Err returns the resolution error: nil while pending or after success,
// ErrCancelled after a shutdown, or the sink error the batch failed with.
func (d *Delivery) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Wait blocks until the delivery resolves or ctx is done. Giving up on the wait
// does not cancel the delivery itself.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
