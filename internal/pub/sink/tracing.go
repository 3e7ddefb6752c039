package sink

import (
	"context"

	"batchpub/internal/pub"
	"batchpub/internal/pub/tracing"
)

// TracedSink opens a span per flushed batch.
// Layer order: TracedSink -> MetricsSink -> Topic.
type TracedSink struct {
	sink   pub.Sink
	tracer *tracing.Tracer
	topic  string
}

func NewTracedSink(sink pub.Sink, tracer *tracing.Tracer, topic string) pub.Sink {
	return &TracedSink{
		sink:   sink,
		tracer: tracer,
		topic:  topic,
	}
}

func (s *TracedSink) Publish(ctx context.Context, events []pub.Event) error {
	ctx, span := s.tracer.Start(ctx, "sink.publish", tracing.Topic(s.topic), tracing.BatchSize(len(events)))

	err := s.sink.Publish(ctx, events)
	s.tracer.End(span, err)

	return err
}
