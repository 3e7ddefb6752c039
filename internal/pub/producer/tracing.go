package producer

import (
	"context"

	"batchpub/internal/pub"
	"batchpub/internal/pub/tracing"
)

// TracedProducer wraps a pub.Producer with distributed tracing.
// Layer order: TracedProducer -> MetricsProducer -> Producer.
type TracedProducer struct {
	producer   pub.Producer
	tracer     *tracing.Tracer
	topic      string
	producerID string
}

func NewTracedProducer(producer pub.Producer, tracer *tracing.Tracer, topic, producerID string) pub.Producer {
	return &TracedProducer{
		producer:   producer,
		tracer:     tracer,
		topic:      topic,
		producerID: producerID,
	}
}

// Submit traces the enqueue only; the delivery resolves after the span ended.
func (p *TracedProducer) Submit(ctx context.Context, e pub.Event) (*pub.Delivery, error) {
	ctx, span := p.tracer.Start(ctx, "producer.submit", tracing.Topic(p.topic), tracing.ProducerID(p.producerID))

	d, err := p.producer.Submit(ctx, e)
	p.tracer.End(span, err)

	return d, err
}

func (p *TracedProducer) Shutdown(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "producer.shutdown", tracing.Topic(p.topic), tracing.ProducerID(p.producerID))

	err := p.producer.Shutdown(ctx)
	p.tracer.End(span, err)

	return err
}
