package pub

import "context"

// Controller defines the storage operations a topic needs to accept batches:
// message persistence and write offset tracking per topic shard.
type Controller interface {
	// GetOffset retrieves the current write offset for a topic shard, the position
	// the next message will be written at.
	GetOffset(ctx context.Context, topic string, shard int) (uint64, error)

	// CommitOffset advances the write offset for a topic shard after a batch has
	// been written. Offsets never move backwards.
	CommitOffset(ctx context.Context, topic string, shard int, offset uint64) error

	// InsertMessage stores a new message. Returns an error wrapping
	// gocb.ErrDocumentExists when the message ID is already stored.
	InsertMessage(ctx context.Context, msg Message) error

	// LoadMessages retrieves up to limit messages of a topic shard starting at
	// fromOffset, in offset order.
	LoadMessages(ctx context.Context, topic string, shard int, fromOffset uint64, limit int) ([]Message, error)
}
