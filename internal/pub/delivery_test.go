package pub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivery_ResolvesOnce(t *testing.T) {
	errSink := errors.New("sink down")

	tests := []struct {
		name   string
		status Status
		err    error
	}{
		{name: "success", status: StatusSucceeded},
		{name: "failure", status: StatusFailed, err: errSink},
		{name: "cancelled", status: StatusCancelled, err: ErrCancelled},
		// a sink may itself be backed by a producer that was shut down
		{name: "failure wrapping cancel", status: StatusFailed, err: fmt.Errorf("upstream: %w", ErrCancelled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, resolve := NewDelivery()
			assert.Equal(t, StatusPending, d.Status())
			assert.NoError(t, d.Err())

			require.True(t, resolve(tt.status, tt.err))
			assert.False(t, resolve(StatusFailed, errors.New("late")))
			assert.False(t, resolve(StatusSucceeded, nil))

			assert.Equal(t, tt.status, d.Status())
			assert.Equal(t, tt.err, d.Err())
			assert.Equal(t, tt.err, d.Wait(context.Background()))

			select {
			case <-d.Done():
			default:
				t.Fatal("done not closed")
			}
		})
	}
}

func TestDelivery_ConcurrentResolve(t *testing.T) {
	d, resolve := NewDelivery()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := StatusSucceeded, error(nil)
			if i%2 == 0 {
				status, err = StatusCancelled, ErrCancelled
			}
			if resolve(status, err) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.NotEqual(t, StatusPending, d.Status())
}

func TestDelivery_WaitHonorsContext(t *testing.T) {
	d, _ := NewDelivery()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Wait(ctx), context.Canceled)
	assert.Equal(t, StatusPending, d.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", Status(42).String())
}
