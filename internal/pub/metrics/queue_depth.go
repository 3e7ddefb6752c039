package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// queueDepthCollector samples queue lengths at scrape time. Producers come and go
// per topic, so the sources are swapped in place instead of re-registering gauges.
type queueDepthCollector struct {
	desc *prometheus.Desc

	mu      sync.RWMutex
	sources map[string]func() int
}

func newQueueDepthCollector() *queueDepthCollector {
	return &queueDepthCollector{
		desc: prometheus.NewDesc(
			"pub_producer_queue_depth",
			"Number of submitted events waiting in the inbound queue",
			[]string{"topic"},
			nil,
		),
		sources: make(map[string]func() int),
	}
}

func (c *queueDepthCollector) track(topic string, depth func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources[topic] = depth
}

func (c *queueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *queueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for topic, depth := range c.sources {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(depth()), topic)
	}
}
