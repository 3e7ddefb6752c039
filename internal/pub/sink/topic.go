package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"batchpub/internal/pub"
	"batchpub/internal/validator"
)

// Topic is the sink that appends batches to a topic shard: every event becomes a
// stored message at the next offset, and the shard offset is committed once the
// whole batch is written.
type Topic struct {
	controller pub.Controller
	logger     *zap.Logger
	topic      string
	shard      int
	producerID string
}

func NewTopic(controller pub.Controller, logger *zap.Logger, topic string, shard int, producerID string) (*Topic, error) {
	t := Topic{
		controller: controller,
		topic:      topic,
		shard:      shard,
		producerID: producerID,
	}

	if err := validator.Validate("topic sink", t.controller, logger, t.topic); err != nil {
		return nil, fmt.Errorf("failed to validate topic sink deps: %w", err)
	}
	t.logger = logger.Named("sink").With(zap.String("topic", topic), zap.Int("shard", shard))

	return &t, nil
}

// Publish implements pub.Sink. The committed offset can lag behind the stored
// messages when an earlier batch failed after writing some of them; offsets taken
// that way are skipped and the event goes to the next free one.
func (t *Topic) Publish(ctx context.Context, events []pub.Event) error {
	if len(events) == 0 {
		return nil
	}

	offset, err := t.controller.GetOffset(ctx, t.topic, t.shard)
	switch {
	case err == nil:
	case errors.Is(err, gocb.ErrDocumentNotFound):
		offset = 0
	default:
		return fmt.Errorf("failed to get offset for topic %s shard %d: %w", t.topic, t.shard, err)
	}

	now := time.Now().UTC()
	skipped := 0
	for _, e := range events {
		for {
			m := t.message(e, offset, now)
			err := t.controller.InsertMessage(ctx, m)
			if err == nil {
				break
			}
			if !errors.Is(err, gocb.ErrDocumentExists) {
				return fmt.Errorf("failed to insert message with ID %s: %w", m.ID, err)
			}
			skipped++
			offset++
		}
		offset++
	}

	if err := t.controller.CommitOffset(ctx, t.topic, t.shard, offset); err != nil {
		return fmt.Errorf("failed to commit offset for topic %s shard %d: %w", t.topic, t.shard, err)
	}

	if skipped > 0 {
		t.logger.Warn("skipped offsets left by an uncommitted batch", zap.Int("skipped", skipped))
	}
	t.logger.Debug("batch written", zap.Int("count", len(events)), zap.Uint64("next_offset", offset))

	return nil
}

func (t *Topic) message(e pub.Event, offset uint64, now time.Time) pub.Message {
	return pub.Message{
		ID:          pub.MessageKey(t.topic, t.shard, offset),
		Offset:      offset,
		Topic:       t.topic,
		Shard:       t.shard,
		PublishTime: ptr(now),
		Event:       e.Type,
		Payload:     e.Payload,
		ProducerID:  t.producerID,
	}
}

func ptr[T any](v T) *T {
	return &v
}
