package producer

import "batchpub/internal/pub"

// batch accumulates events for the next sink call. events and resolvers are
// index aligned. It is only ever touched by the producer loop.
type batch struct {
	events    []pub.Event
	resolvers []pub.ResolveFunc
}

func newBatch(size int) *batch {
	size = min(size, 1024)
	return &batch{
		events:    make([]pub.Event, 0, size),
		resolvers: make([]pub.ResolveFunc, 0, size),
	}
}

func (b *batch) add(m message) {
	b.events = append(b.events, m.event)
	b.resolvers = append(b.resolvers, m.resolve)
}

func (b *batch) len() int {
	return len(b.events)
}

func (b *batch) reset() {
	clear(b.events)
	clear(b.resolvers)
	b.events = b.events[:0]
	b.resolvers = b.resolvers[:0]
}
