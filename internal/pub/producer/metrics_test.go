package producer

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"batchpub/internal/pub"
	"batchpub/internal/pub/metrics"
)

func TestMetricsProducer_RecordsSubmitOutcome(t *testing.T) {
	registry := metrics.NewRegistry()
	hold, release := gated()
	config := testConfig(10)
	config.QueueCapacity = 2
	base := newTestProducer(t, context.Background(), config, &recordingSink{}, hold)
	p := NewMetricsProducer(base, registry, "orders")

	deliveries := submitN(t, p, 2)
	_, err := p.Submit(context.Background(), event(2))
	require.ErrorIs(t, err, pub.ErrQueueFull)

	release()
	waitAll(t, deliveries)
	require.NoError(t, p.Shutdown(context.Background()))

	_, err = p.Submit(context.Background(), event(3))
	require.ErrorIs(t, err, pub.ErrStopped)

	expected := `
# HELP pub_producer_submit_total Total number of submit calls
# TYPE pub_producer_submit_total counter
pub_producer_submit_total{status="accepted",topic="orders"} 2
pub_producer_submit_total{status="queue_full",topic="orders"} 1
pub_producer_submit_total{status="stopped",topic="orders"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry.Gatherer(), strings.NewReader(expected), "pub_producer_submit_total"))
}
