package sink

import (
	"context"
	"time"

	"batchpub/internal/pub"
	"batchpub/internal/pub/metrics"
)

// MetricsSink wraps a pub.Sink with flush metrics
type MetricsSink struct {
	sink     pub.Sink
	registry *metrics.Registry
	topic    string
}

// NewMetricsSink creates a new instrumented sink
func NewMetricsSink(sink pub.Sink, registry *metrics.Registry, topic string) pub.Sink {
	return &MetricsSink{
		sink:     sink,
		registry: registry,
		topic:    topic,
	}
}

// Publish implements pub.Sink.Publish with metrics collection
func (s *MetricsSink) Publish(ctx context.Context, events []pub.Event) error {
	start := time.Now()

	err := s.sink.Publish(ctx, events)
	s.registry.RecordFlush(s.topic, len(events), time.Since(start), err)

	return err
}
