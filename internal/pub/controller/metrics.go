package controller

import (
	"context"
	"time"

	"batchpub/internal/pub"
	"batchpub/internal/pub/metrics"
)

// MetricsController records the latency and outcome of every storage call.
type MetricsController struct {
	controller pub.Controller
	registry   *metrics.Registry
}

func NewMetricsController(controller pub.Controller, registry *metrics.Registry) pub.Controller {
	return &MetricsController{
		controller: controller,
		registry:   registry,
	}
}

func (c *MetricsController) GetOffset(ctx context.Context, topic string, shard int) (uint64, error) {
	return observe(c.registry, "get_offset", func() (uint64, error) {
		return c.controller.GetOffset(ctx, topic, shard)
	})
}

func (c *MetricsController) CommitOffset(ctx context.Context, topic string, shard int, offset uint64) error {
	_, err := observe(c.registry, "commit_offset", func() (struct{}, error) {
		return struct{}{}, c.controller.CommitOffset(ctx, topic, shard, offset)
	})
	return err
}

func (c *MetricsController) InsertMessage(ctx context.Context, msg pub.Message) error {
	_, err := observe(c.registry, "insert_message", func() (struct{}, error) {
		return struct{}{}, c.controller.InsertMessage(ctx, msg)
	})
	return err
}

func (c *MetricsController) LoadMessages(ctx context.Context, topic string, shard int, fromOffset uint64, limit int) ([]pub.Message, error) {
	return observe(c.registry, "load_messages", func() ([]pub.Message, error) {
		return c.controller.LoadMessages(ctx, topic, shard, fromOffset, limit)
	})
}

func observe[T any](registry *metrics.Registry, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	registry.RecordDatabaseOperation(operation, time.Since(start), err)

	return v, err
}
