package controller

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"batchpub/internal/pub"
	"batchpub/internal/pub/tracing"
)

// TracedController wraps a pub.Controller with distributed tracing.
// Layer order: TracedController -> MetricsController -> Controller.
type TracedController struct {
	controller pub.Controller
	tracer     *tracing.Tracer
}

func NewTracedController(controller pub.Controller, tracer *tracing.Tracer) pub.Controller {
	return &TracedController{
		controller: controller,
		tracer:     tracer,
	}
}

func (c *TracedController) start(ctx context.Context, operation, topic string, shard int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, tracing.Topic(topic), tracing.Shard(shard))
	attrs = append(attrs, tracing.DBOperation(operation)...)

	return c.tracer.Start(ctx, "controller."+operation, attrs...)
}

func (c *TracedController) GetOffset(ctx context.Context, topic string, shard int) (uint64, error) {
	ctx, span := c.start(ctx, "get_offset", topic, shard)

	offset, err := c.controller.GetOffset(ctx, topic, shard)
	if err == nil {
		span.SetAttributes(tracing.Offset(offset))
	}
	c.tracer.End(span, err)

	return offset, err
}

func (c *TracedController) CommitOffset(ctx context.Context, topic string, shard int, offset uint64) error {
	ctx, span := c.start(ctx, "commit_offset", topic, shard, tracing.Offset(offset))

	err := c.controller.CommitOffset(ctx, topic, shard, offset)
	c.tracer.End(span, err)

	return err
}

func (c *TracedController) InsertMessage(ctx context.Context, msg pub.Message) error {
	ctx, span := c.start(ctx, "insert_message", msg.Topic, msg.Shard,
		attribute.String("pub.message_id", msg.ID),
		tracing.Offset(msg.Offset),
	)

	err := c.controller.InsertMessage(ctx, msg)
	c.tracer.End(span, err)

	return err
}

func (c *TracedController) LoadMessages(ctx context.Context, topic string, shard int, fromOffset uint64, limit int) ([]pub.Message, error) {
	ctx, span := c.start(ctx, "load_messages", topic, shard,
		attribute.Int64("pub.from_offset", int64(fromOffset)),
		attribute.Int("pub.limit", limit),
	)

	messages, err := c.controller.LoadMessages(ctx, topic, shard, fromOffset, limit)
	if err == nil {
		span.SetAttributes(attribute.Int("pub.messages_loaded", len(messages)))
	}
	c.tracer.End(span, err)

	return messages, err
}
