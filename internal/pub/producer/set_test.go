package producer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"batchpub/internal/pub"
)

type factoryRecorder struct {
	t    *testing.T
	sink pub.Sink

	mu      sync.Mutex
	created map[string][]*Producer
}

func (f *factoryRecorder) factory(ctx context.Context, topic string) (pub.Producer, error) {
	p, err := New(ctx, topic, testConfig(1), f.sink, zaptest.NewLogger(f.t))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[topic] = append(f.created[topic], p)

	return p, nil
}

func (f *factoryRecorder) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[topic])
}

func TestSet_CreatesProducerPerTopicOnFirstUse(t *testing.T) {
	f := &factoryRecorder{t: t, sink: &recordingSink{}, created: make(map[string][]*Producer)}
	s := NewSet(context.Background(), f.factory, zaptest.NewLogger(t))

	assert.Empty(t, s.Topics())

	var deliveries []*pub.Delivery
	for _, topic := range []string{"orders", "orders", "invoices"} {
		d, err := s.Submit(context.Background(), topic, event(0))
		require.NoError(t, err)
		deliveries = append(deliveries, d)
	}
	waitAll(t, deliveries)

	assert.Equal(t, 1, f.count("orders"))
	assert.Equal(t, 1, f.count("invoices"))
	assert.ElementsMatch(t, []string{"orders", "invoices"}, s.Topics())

	require.NoError(t, s.Shutdown(context.Background()))

	_, err := s.Submit(context.Background(), "orders", event(1))
	assert.ErrorIs(t, err, pub.ErrStopped)
}

func TestSet_ReplacesTerminatedProducer(t *testing.T) {
	var fail sync.Once
	sink := &recordingSink{fn: func(context.Context, int) error {
		var err error
		fail.Do(func() { err = errBoom })
		return err
	}}
	f := &factoryRecorder{t: t, sink: sink, created: make(map[string][]*Producer)}
	s := NewSet(context.Background(), f.factory, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, s.Shutdown(context.Background())) })

	d, err := s.Submit(context.Background(), "orders", event(0))
	require.NoError(t, err)
	waitAll(t, []*pub.Delivery{d})
	require.ErrorIs(t, d.Err(), errBoom)

	first := f.created["orders"][0]
	<-first.Done()

	d, err = s.Submit(context.Background(), "orders", event(1))
	require.NoError(t, err)
	waitAll(t, []*pub.Delivery{d})
	assert.Equal(t, pub.StatusSucceeded, d.Status())
	assert.Equal(t, 2, f.count("orders"))
}

func TestSet_FactoryError(t *testing.T) {
	s := NewSet(context.Background(), func(context.Context, string) (pub.Producer, error) {
		return nil, errBoom
	}, zaptest.NewLogger(t))

	_, err := s.Submit(context.Background(), "orders", event(0))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, s.Topics())
}

type stubbornProducer struct {
	pub.Producer
	err error
}

func (p stubbornProducer) Shutdown(context.Context) error {
	return p.err
}

func TestSet_ShutdownCombinesErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	s := NewSet(context.Background(), func(_ context.Context, topic string) (pub.Producer, error) {
		switch topic {
		case "a":
			return stubbornProducer{err: errA}, nil
		case "b":
			return stubbornProducer{err: errB}, nil
		default:
			return stubbornProducer{}, nil
		}
	}, zaptest.NewLogger(t))

	for _, topic := range []string{"a", "b", "c"} {
		_, err := s.get(topic)
		require.NoError(t, err)
	}

	err := s.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "topic a")
	assert.Contains(t, err.Error(), "topic b")

	_, err = s.Submit(context.Background(), "a", event(0))
	assert.ErrorIs(t, err, pub.ErrStopped)
}
