package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private prometheus registry with the producer, sink and storage
// metrics. Nothing is registered globally.
type Registry struct {
	registry *prometheus.Registry

	// Producer metrics
	submitTotal     *prometheus.CounterVec
	flushTotal      *prometheus.CounterVec
	flushDuration   *prometheus.HistogramVec
	flushBatchSize  *prometheus.HistogramVec
	deliveriesTotal *prometheus.CounterVec
	queueDepth      *queueDepthCollector

	// Controller/Database metrics
	databaseOperationTotal    *prometheus.CounterVec
	databaseOperationDuration *prometheus.HistogramVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry registers every metric plus the Go and process collectors.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		submitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_producer_submit_total",
				Help: "Total number of submit calls",
			},
			[]string{"topic", "status"}, // status: accepted, queue_full, stopped
		),

		flushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_producer_flush_total",
				Help: "Total number of batches handed to the sink",
			},
			[]string{"topic", "status"}, // status: success, error
		),

		flushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pub_producer_flush_duration_seconds",
				Help:    "Time spent waiting on the sink per batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),

		flushBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pub_producer_batch_size",
				Help:    "Number of events in flushed batches",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"topic"},
		),

		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_producer_deliveries_total",
				Help: "Total number of resolved deliveries",
			},
			[]string{"topic", "status"}, // status: succeeded, failed, cancelled
		),

		queueDepth: newQueueDepthCollector(),

		databaseOperationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_database_operation_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"}, // operation: get_offset, commit_offset, insert_message, load_messages
		),

		databaseOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pub_database_operation_duration_seconds",
				Help:    "Time spent on database operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pub_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pub_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.submitTotal,
		r.flushTotal,
		r.flushDuration,
		r.flushBatchSize,
		r.deliveriesTotal,
		r.queueDepth,
		r.databaseOperationTotal,
		r.databaseOperationDuration,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for scraping in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordSubmit records the synchronous outcome of a submit call.
func (r *Registry) RecordSubmit(topic, status string) {
	r.submitTotal.WithLabelValues(topic, status).Inc()
}

// RecordFlush records one sink call
func (r *Registry) RecordFlush(topic string, batchSize int, duration time.Duration, err error) {
	r.flushTotal.WithLabelValues(topic, outcome(err)).Inc()
	r.flushDuration.WithLabelValues(topic).Observe(duration.Seconds())
	r.flushBatchSize.WithLabelValues(topic).Observe(float64(batchSize))
}

// RecordDelivery records the final state of a delivery.
func (r *Registry) RecordDelivery(topic, status string) {
	r.deliveriesTotal.WithLabelValues(topic, status).Inc()
}

// TrackQueueDepth reports the inbound queue length of a topic's producer on every
// scrape. Tracking the same topic again replaces the previous source.
func (r *Registry) TrackQueueDepth(topic string, depth func() int) {
	r.queueDepth.track(topic, depth)
}

// RecordDatabaseOperation records a database operation
func (r *Registry) RecordDatabaseOperation(operation string, duration time.Duration, err error) {
	r.databaseOperationTotal.WithLabelValues(operation, outcome(err)).Inc()
	r.databaseOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
