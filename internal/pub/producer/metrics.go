package producer

import (
	"context"
	"errors"

	"batchpub/internal/pub"
	"batchpub/internal/pub/metrics"
)

// MetricsProducer wraps a pub.Producer with submit metrics
type MetricsProducer struct {
	producer pub.Producer
	registry *metrics.Registry
	topic    string
}

// NewMetricsProducer creates a new instrumented producer
func NewMetricsProducer(producer pub.Producer, registry *metrics.Registry, topic string) pub.Producer {
	return &MetricsProducer{
		producer: producer,
		registry: registry,
		topic:    topic,
	}
}

// Submit implements pub.Producer.Submit with metrics collection
func (p *MetricsProducer) Submit(ctx context.Context, e pub.Event) (*pub.Delivery, error) {
	d, err := p.producer.Submit(ctx, e)

	status := "accepted"
	switch {
	case err == nil:
	case errors.Is(err, pub.ErrQueueFull):
		status = "queue_full"
	case errors.Is(err, pub.ErrStopped):
		status = "stopped"
	default:
		status = "error"
	}
	p.registry.RecordSubmit(p.topic, status)

	return d, err
}

// Shutdown implements pub.Producer.Shutdown
func (p *MetricsProducer) Shutdown(ctx context.Context) error {
	return p.producer.Shutdown(ctx)
}
