package pub

import (
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"batchpub/internal/couchbase"
)

const (
	MessagesCollection = "messages"
	OffsetsCollection  = "offsets"
)

// Message is an event written to a topic shard at a fixed offset.
type Message struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Shard       int        `json:"shard"`
	Offset      uint64     `json:"offset"`
	Event       string     `json:"event"`
	Payload     any        `json:"payload"`
	ProducerID  string     `json:"producerId,omitempty"`
	PublishTime *time.Time `json:"publishTime,omitempty"`
}

// Offset records where the next message of a topic shard goes.
type Offset struct {
	Topic string `json:"topic"`
	Shard int    `json:"shard"`
	Next  uint64 `json:"next"`
}

// Stores are the collections a topic lives in.
type Stores struct {
	Messages *couchbase.Store[Message]
	Offsets  *couchbase.Store[Offset]
}

// OpenStores opens the message and offset collections of scope.
func OpenStores(scope *gocb.Scope) (Stores, error) {
	messages, err := couchbase.NewStore[Message](scope, MessagesCollection)
	if err != nil {
		return Stores{}, fmt.Errorf("failed to open messages store: %w", err)
	}
	offsets, err := couchbase.NewStore[Offset](scope, OffsetsCollection)
	if err != nil {
		return Stores{}, fmt.Errorf("failed to open offsets store: %w", err)
	}

	return Stores{Messages: messages, Offsets: offsets}, nil
}

func MessageKey(topic string, shard int, offset uint64) string {
	return fmt.Sprintf("message::%s::%d::%d", topic, shard, offset)
}

func OffsetKey(topic string, shard int) string {
	return fmt.Sprintf("offset::%s::%d", topic, shard)
}
