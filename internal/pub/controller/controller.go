package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"batchpub/internal/couchbase"
	"batchpub/internal/pub"
	"batchpub/internal/validator"
)

const messageExpiry = 7 * 24 * time.Hour

// Controller is the Couchbase implementation of pub.Controller. Messages live in
// their own collection keyed by topic, shard and offset; the write offset of each
// shard is advanced inside a distributed transaction.
type Controller struct {
	messages     *couchbase.Store[pub.Message]
	offsets      *couchbase.Store[pub.Offset]
	transactions *couchbase.Transactions
}

func NewController(stores pub.Stores, transactions *couchbase.Transactions) (*Controller, error) {
	c := Controller{
		messages:     stores.Messages,
		offsets:      stores.Offsets,
		transactions: transactions,
	}

	if err := validator.Validate("controller", c.messages, c.offsets, c.transactions); err != nil {
		return nil, fmt.Errorf("failed to validate controller dependencies: %w", err)
	}

	return &c, nil
}

// GetOffset implements pub.Controller.GetOffset. The error wraps
// gocb.ErrDocumentNotFound for shards that were never written.
func (c *Controller) GetOffset(ctx context.Context, topic string, shard int) (uint64, error) {
	offset, err := c.offsets.Get(ctx, pub.OffsetKey(topic, shard))
	if err != nil {
		return 0, fmt.Errorf("failed to get offset: %w", err)
	}

	return offset.Next, nil
}

// CommitOffset implements pub.Controller.CommitOffset. Two writers can race to
// create the first offset document; the loser reads it again and updates it.
func (c *Controller) CommitOffset(ctx context.Context, topic string, shard int, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit offset for topic %s shard %d: %w", topic, shard, err)
	}

	key := pub.OffsetKey(topic, shard)
	err := c.transactions.Run(func(tx *couchbase.Tx) error {
		for {
			current, doc, err := c.offsets.TxGet(tx, key)
			if errors.Is(err, gocb.ErrDocumentNotFound) {
				err := c.offsets.TxInsert(tx, key, pub.Offset{Topic: topic, Shard: shard, Next: offset})
				if errors.Is(err, gocb.ErrDocumentExists) {
					continue
				}
				return err
			}
			if err != nil {
				return err
			}

			if offset <= current.Next {
				return nil
			}
			current.Next = offset

			return c.offsets.TxReplace(tx, doc, current)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to commit offset for topic %s shard %d: %w", topic, shard, err)
	}

	return nil
}

// InsertMessage implements pub.Controller.InsertMessage. Messages expire after a week.
func (c *Controller) InsertMessage(ctx context.Context, msg pub.Message) error {
	if err := c.messages.Insert(ctx, msg.ID, msg, messageExpiry); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// LoadMessages implements pub.Controller.LoadMessages.
func (c *Controller) LoadMessages(ctx context.Context, topic string, shard int, fromOffset uint64, limit int) ([]pub.Message, error) {
	statement := fmt.Sprintf(
		"SELECT RAW m FROM `%s` m "+
			"WHERE m.topic = $topic AND m.shard = $shard AND m.`offset` >= $from "+
			"ORDER BY m.`offset` LIMIT $limit",
		c.messages.Name(),
	)

	messages, err := c.messages.Query(ctx, statement, map[string]any{
		"topic": topic,
		"shard": shard,
		"from":  fromOffset,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return messages, nil
}
