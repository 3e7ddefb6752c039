package producer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"batchpub/internal/pub"
	"batchpub/internal/validator"
)

// Producer batches events submitted by any number of goroutines and hands them to
// a sink from a single loop goroutine, one batch in flight at a time.
//
// The loop flushes whenever the batch reaches Config.BatchSize and whenever the
// inbound queue runs dry with a partial batch pending. A sink error is fatal: the
// failed batch and everything still queued resolve with that error and the
// producer stops accepting events. Shutdown resolves the remainder as cancelled.
type Producer struct {
	id     string
	topic  string
	config Config
	sink   pub.Sink
	queue  *queue

	logger    *zap.Logger
	errLogger *zap.Logger
	onResolve func(pub.Status)
	hooks     hooks

	cancel context.CancelFunc
	done   chan struct{}
}

// hooks are synchronization points for tests; nil hooks are skipped.
type hooks struct {
	// start runs on the loop goroutine before the first dequeue.
	start func()
	// idle runs when the queue is empty and a partial batch is about to be flushed.
	idle func()
}

type options struct {
	id        string
	errLogger *zap.Logger
	onResolve func(pub.Status)
	hooks     hooks
}

// Option customizes a Producer.
type Option func(*options)

// WithID sets the producer ID used in logs and stored messages. Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithErrorLogger sets the logger fatal sink errors go to. It is expected to be
// throttled, see NewThrottledLogger. Defaults to a throttled copy of the producer logger.
func WithErrorLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.errLogger = logger
	}
}

// WithResolveHook registers a callback run on the loop goroutine for every
// delivery the loop resolves. It must not block.
func WithResolveHook(fn func(pub.Status)) Option {
	return func(o *options) {
		o.onResolve = fn
	}
}

// New validates the config and starts the producer loop. Cancelling ctx has the
// same effect as Shutdown, without waiting.
func New(ctx context.Context, topic string, config Config, sink pub.Sink, logger *zap.Logger, opts ...Option) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validator.Validate("producer", sink, logger, topic); err != nil {
		return nil, fmt.Errorf("failed to validate producer deps: %w", err)
	}

	o := options{id: uuid.NewString()}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.Named("producer").With(zap.String("topic", topic), zap.String("producer_id", o.id))
	if o.errLogger == nil {
		o.errLogger = NewThrottledLogger(logger, config.ErrorLogWindow, config.ErrorLogBurst)
	} else {
		o.errLogger = o.errLogger.With(zap.String("topic", topic), zap.String("producer_id", o.id))
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Producer{
		id:        o.id,
		topic:     topic,
		config:    config,
		sink:      sink,
		queue:     newQueue(config.QueueCapacity),
		logger:    logger,
		errLogger: o.errLogger,
		onResolve: o.onResolve,
		hooks:     o.hooks,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go p.run(ctx)

	logger.Info("producer started",
		zap.Int("batch_size", config.BatchSize),
		zap.Int("queue_capacity", config.QueueCapacity),
	)

	return p, nil
}

// Submit implements pub.Producer.Submit. It never blocks; ctx is not waited on.
func (p *Producer) Submit(_ context.Context, e pub.Event) (*pub.Delivery, error) {
	d, resolve := pub.NewDelivery()
	if err := p.queue.tryEnqueue(message{event: e, resolve: resolve}); err != nil {
		return nil, err
	}

	return d, nil
}

// Shutdown implements pub.Producer.Shutdown. It cancels the loop and waits until
// every accepted event resolved. If ctx ends first, ctx.Err() is returned and the
// loop finishes draining in the background.
func (p *Producer) Shutdown(ctx context.Context) error {
	p.cancel()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for producer %s to drain: %w", p.id, ctx.Err())
	}
}

// Done is closed once the loop terminated, after a shutdown or a fatal sink error.
func (p *Producer) Done() <-chan struct{} {
	return p.done
}

// Pending reports how many events wait in the inbound queue.
func (p *Producer) Pending() int {
	return p.queue.len()
}

// ID returns the producer instance ID.
func (p *Producer) ID() string {
	return p.id
}

func (p *Producer) run(ctx context.Context) {
	defer close(p.done)

	if p.hooks.start != nil {
		p.hooks.start()
	}

	b := newBatch(p.config.BatchSize)
	for {
		if ctx.Err() != nil {
			p.terminate(b, pub.StatusCancelled, pub.ErrCancelled)
			p.logger.Info("producer stopped")
			return
		}

		if m, ok := p.queue.tryDequeue(); ok {
			b.add(m)
			if b.len() < p.config.BatchSize {
				continue
			}
			if err := p.flush(ctx, b); err != nil {
				p.fail(b, err)
				return
			}
			continue
		}

		if b.len() > 0 {
			if p.hooks.idle != nil {
				p.hooks.idle()
			}
			if ctx.Err() != nil {
				continue
			}
			if err := p.flush(ctx, b); err != nil {
				p.fail(b, err)
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
		case <-p.queue.ready():
		}
	}
}

// flush hands the batch to the sink and resolves it on success. The sink call is
// detached from the loop's cancellation so a shutdown lets it finish.
func (p *Producer) flush(ctx context.Context, b *batch) error {
	ctx = context.WithoutCancel(ctx)
	if p.config.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.FlushTimeout)
		defer cancel()
	}

	if err := p.sink.Publish(ctx, b.events); err != nil {
		return err
	}

	p.logger.Debug("batch flushed", zap.Int("count", b.len()))
	p.settle(b.resolvers, pub.StatusSucceeded, nil)
	b.reset()

	return nil
}

func (p *Producer) fail(b *batch, err error) {
	failed := b.len()
	pending := p.terminate(b, pub.StatusFailed, err)

	p.errLogger.Error("producer terminated by sink error",
		zap.Int("batch_size", failed),
		zap.Int("queued", pending),
		zap.Error(err),
	)
}

// terminate closes the queue and resolves the batch and every queued message to
// status with cause. It returns the number of queued messages it drained.
func (p *Producer) terminate(b *batch, status pub.Status, cause error) int {
	rest := p.queue.close()

	p.settle(b.resolvers, status, cause)
	b.reset()

	for _, m := range rest {
		p.resolve(m.resolve, status, cause)
	}

	return len(rest)
}

func (p *Producer) settle(resolvers []pub.ResolveFunc, status pub.Status, err error) {
	for _, resolve := range resolvers {
		p.resolve(resolve, status, err)
	}
}

func (p *Producer) resolve(resolve pub.ResolveFunc, status pub.Status, err error) {
	if resolve(status, err) && p.onResolve != nil {
		p.onResolve(status)
	}
}
