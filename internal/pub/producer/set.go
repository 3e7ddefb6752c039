package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"batchpub/internal/pub"
)

// Factory builds the producer for a topic.
type Factory func(ctx context.Context, topic string) (pub.Producer, error)

// Set keeps one producer per topic. Producers are created on the first Submit for
// their topic and replaced on the next Submit after they terminated.
type Set struct {
	ctx     context.Context
	factory Factory
	logger  *zap.Logger

	mu        sync.Mutex
	closed    bool
	producers map[string]pub.Producer
	// terminated producers still need a Shutdown to join their loops
	retired []retiredProducer
}

type retiredProducer struct {
	topic    string
	producer pub.Producer
}

// NewSet creates an empty set. ctx is handed to the factory and outlives every producer.
func NewSet(ctx context.Context, factory Factory, logger *zap.Logger) *Set {
	return &Set{
		ctx:       ctx,
		factory:   factory,
		logger:    logger.Named("producer-set"),
		producers: make(map[string]pub.Producer),
	}
}

// Submit submits e to the topic's producer. A producer that reports pub.ErrStopped
// is replaced by a fresh one and the submit is attempted once more.
func (s *Set) Submit(ctx context.Context, topic string, e pub.Event) (*pub.Delivery, error) {
	p, err := s.get(topic)
	if err != nil {
		return nil, err
	}

	d, err := p.Submit(ctx, e)
	if !errors.Is(err, pub.ErrStopped) {
		return d, err
	}

	if p, err = s.replace(topic, p); err != nil {
		return nil, err
	}

	return p.Submit(ctx, e)
}

func (s *Set) get(topic string) (pub.Producer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, pub.ErrStopped
	}
	if p, ok := s.producers[topic]; ok {
		return p, nil
	}

	return s.create(topic)
}

func (s *Set) replace(topic string, stopped pub.Producer) (pub.Producer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, pub.ErrStopped
	}
	if p, ok := s.producers[topic]; ok && p != stopped {
		// another caller already replaced it
		return p, nil
	}

	s.retired = append(s.retired, retiredProducer{topic: topic, producer: stopped})
	delete(s.producers, topic)
	s.logger.Warn("replacing terminated producer", zap.String("topic", topic))

	return s.create(topic)
}

// create must be called with mu held.
func (s *Set) create(topic string) (pub.Producer, error) {
	p, err := s.factory(s.ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer for topic %s: %w", topic, err)
	}
	s.producers[topic] = p

	return p, nil
}

// Topics returns the topics that currently have a producer.
func (s *Set) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]string, 0, len(s.producers))
	for topic := range s.producers {
		topics = append(topics, topic)
	}

	return topics
}

// Shutdown stops accepting submits and shuts every producer down in parallel. The
// error combines every producer that failed to drain in time.
func (s *Set) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	all := s.retired
	for topic, p := range s.producers {
		all = append(all, retiredProducer{topic: topic, producer: p})
	}
	s.producers = make(map[string]pub.Producer)
	s.retired = nil
	s.mu.Unlock()

	errs := make([]error, len(all))
	var wg sync.WaitGroup
	for i, r := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.producer.Shutdown(ctx); err != nil {
				errs[i] = fmt.Errorf("failed to shut down producer for topic %s: %w", r.topic, err)
			}
		}()
	}
	wg.Wait()

	return multierr.Combine(errs...)
}
