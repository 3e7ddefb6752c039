package producer

import (
	"fmt"
	"time"

	"batchpub/internal/pub"
)

// Config holds the tunables of a single producer.
type Config struct {
	// BatchSize is the number of events that triggers a flush. Partial batches are
	// flushed as soon as the inbound queue runs empty.
	BatchSize int `env:"PRODUCER_BATCH_SIZE" envDefault:"100"`
	// QueueCapacity bounds the inbound queue; 0 means unbounded. When bounded,
	// Submit fails fast with pub.ErrQueueFull.
	QueueCapacity int `env:"PRODUCER_QUEUE_CAPACITY" envDefault:"0"`
	// FlushTimeout caps a single sink call; 0 leaves timeouts to the sink.
	FlushTimeout time.Duration `env:"PRODUCER_FLUSH_TIMEOUT" envDefault:"0s"`
	// ErrorLogWindow and ErrorLogBurst throttle the fatal sink error log.
	ErrorLogWindow time.Duration `env:"PRODUCER_ERROR_LOG_WINDOW" envDefault:"10s"`
	ErrorLogBurst  int           `env:"PRODUCER_ERROR_LOG_BURST" envDefault:"3"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:      100,
		ErrorLogWindow: 10 * time.Second,
		ErrorLogBurst:  3,
	}
}

// Validate checks the config for values the producer cannot run with.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", pub.ErrInvalidConfig, c.BatchSize)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must not be negative, got %d", pub.ErrInvalidConfig, c.QueueCapacity)
	}
	if c.FlushTimeout < 0 {
		return fmt.Errorf("%w: flush timeout must not be negative, got %s", pub.ErrInvalidConfig, c.FlushTimeout)
	}

	return nil
}
