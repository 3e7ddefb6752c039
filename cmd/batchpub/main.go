package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/couchbase/gocb/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"batchpub/internal/couchbase"
	"batchpub/internal/pub"
	"batchpub/internal/pub/controller"
	"batchpub/internal/pub/metrics"
	"batchpub/internal/pub/producer"
	"batchpub/internal/pub/sink"
	"batchpub/internal/pub/tracing"
)

type Config struct {
	CouchbaseConnectionString string        `env:"COUCHBASE_CONNECTION_STRING" envDefault:"couchbase://localhost"`
	CouchbaseUsername         string        `env:"COUCHBASE_USERNAME" envDefault:"Administrator"`
	CouchbasePassword         string        `env:"COUCHBASE_PASSWORD" envDefault:"password"`
	CouchbaseBucketName       string        `env:"COUCHBASE_BUCKET_NAME" envDefault:"pubsub"`
	CouchbaseScopeName        string        `env:"COUCHBASE_SCOPE_NAME" envDefault:"default"`
	TransactionTimeout        time.Duration `env:"COUCHBASE_TRANSACTION_TIMEOUT" envDefault:"10s"`
	Topics                    []string      `env:"TOPICS" envSeparator:"," envDefault:"orders,payments"`
	Shard                     int           `env:"SHARD" envDefault:"0"`
	SubmittersPerTopic        int           `env:"SUBMITTERS_PER_TOPIC" envDefault:"4"`
	EventsPerSubmitter        int           `env:"EVENTS_PER_SUBMITTER" envDefault:"250"`
	SubmitRetryDelay          time.Duration `env:"SUBMIT_RETRY_DELAY" envDefault:"5ms"`
	DeliveryTimeout           time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CPUProfile                string        `env:"CPU_PROFILE"`
	LogLevel                  string        `env:"LOG_LEVEL" envDefault:"info"`

	Producer producer.Config
	Metrics  metrics.ServerConfig
	Tracing  tracing.Config
}

type stats struct {
	accepted  atomic.Int64
	rejected  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}
	if err := cfg.Producer.Validate(); err != nil {
		log.Fatalf("invalid producer config: %v", err)
	}

	if cfg.CPUProfile != "" {
		cpuProfile, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer cpuProfile.Close()
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cluster, bucket, err := newCouchbase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to couchbase", zap.Error(err))
	}
	defer func() {
		if err := cluster.Close(nil); err != nil {
			logger.Error("failed to close couchbase cluster", zap.Error(err))
		}
	}()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo("batchpub", time.Now().Format(time.RFC3339))
	metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Fatal("failed to start metrics server", zap.Error(err))
	}

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	stores, err := pub.OpenStores(bucket.Scope(cfg.CouchbaseScopeName))
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	transactions, err := couchbase.NewTransactions(cluster, cfg.TransactionTimeout)
	if err != nil {
		logger.Fatal("failed to create transactions", zap.Error(err))
	}

	baseController, err := controller.NewController(stores, transactions)
	if err != nil {
		logger.Fatal("failed to create controller", zap.Error(err))
	}
	ctlr := controller.NewTracedController(controller.NewMetricsController(baseController, metricsRegistry), tracer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// one throttled logger for every producer so a failing cluster cannot flood the logs
	errLogger := producer.NewThrottledLogger(logger, cfg.Producer.ErrorLogWindow, cfg.Producer.ErrorLogBurst)
	factory := func(ctx context.Context, topic string) (pub.Producer, error) {
		id := uuid.NewString()

		topicSink, err := sink.NewTopic(ctlr, logger, topic, cfg.Shard, id)
		if err != nil {
			return nil, err
		}
		s := sink.NewTracedSink(sink.NewMetricsSink(topicSink, metricsRegistry, topic), tracer, topic)

		p, err := producer.New(ctx, topic, cfg.Producer, s, logger,
			producer.WithID(id),
			producer.WithErrorLogger(errLogger),
			producer.WithResolveHook(func(status pub.Status) {
				metricsRegistry.RecordDelivery(topic, status.String())
			}),
		)
		if err != nil {
			return nil, err
		}
		metricsRegistry.TrackQueueDepth(topic, p.Pending)

		return producer.NewTracedProducer(producer.NewMetricsProducer(p, metricsRegistry, topic), tracer, topic, id), nil
	}
	producers := producer.NewSet(context.WithoutCancel(ctx), factory, logger)

	var st stats
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range cfg.Topics {
		for i := 0; i < cfg.SubmittersPerTopic; i++ {
			g.Go(func() error {
				return submit(gctx, logger, cfg, producers, topic, i, &st)
			})
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("submitter failed", zap.Error(err))
	}

	metricsServer.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := producers.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down producers", zap.Error(err))
	}

	for _, topic := range cfg.Topics {
		report(shutdownCtx, logger, ctlr, topic, cfg.Shard)
	}

	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop metrics server", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("accepted", st.accepted.Load()),
		zap.Int64("rejected", st.rejected.Load()),
		zap.Int64("succeeded", st.succeeded.Load()),
		zap.Int64("failed", st.failed.Load()),
		zap.Int64("cancelled", st.cancelled.Load()),
	)
}

// submit pushes events into a topic and waits on every delivery. A full queue is
// retried after a short delay; everything else ends up in the stats.
func submit(ctx context.Context, logger *zap.Logger, cfg Config, producers *producer.Set, topic string, submitter int, st *stats) error {
	deliveries := make([]*pub.Delivery, 0, cfg.EventsPerSubmitter)
	for i := 0; i < cfg.EventsPerSubmitter; i++ {
		e := orderEvent(submitter, i)
		for {
			d, err := producers.Submit(ctx, topic, e)
			if err == nil {
				st.accepted.Add(1)
				deliveries = append(deliveries, d)
				break
			}
			if !errors.Is(err, pub.ErrQueueFull) {
				st.rejected.Add(1)
				return fmt.Errorf("failed to submit to topic %s: %w", topic, err)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.SubmitRetryDelay):
			}
		}
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.DeliveryTimeout)
	defer cancel()
	for _, d := range deliveries {
		err := d.Wait(waitCtx)
		switch {
		case err == nil:
			st.succeeded.Add(1)
		case errors.Is(err, pub.ErrCancelled):
			st.cancelled.Add(1)
		case errors.Is(err, waitCtx.Err()):
			return fmt.Errorf("gave up waiting for deliveries on topic %s: %w", topic, err)
		default:
			st.failed.Add(1)
		}
	}

	logger.Debug("submitter done", zap.String("topic", topic), zap.Int("submitter", submitter), zap.Int("events", len(deliveries)))

	return nil
}

func report(ctx context.Context, logger *zap.Logger, ctlr pub.Controller, topic string, shard int) {
	logger = logger.With(zap.String("topic", topic), zap.Int("shard", shard))

	offset, err := ctlr.GetOffset(ctx, topic, shard)
	switch {
	case err == nil:
	case errors.Is(err, gocb.ErrDocumentNotFound):
		logger.Info("topic is empty")
		return
	default:
		logger.Error("failed to read topic offset", zap.Error(err))
		return
	}

	const tail = 5
	from := offset - min(offset, tail)
	msgs, err := ctlr.LoadMessages(ctx, topic, shard, from, tail)
	if err != nil {
		logger.Error("failed to load topic tail", zap.Error(err))
		return
	}

	logger.Info("topic written", zap.Uint64("next_offset", offset), zap.Int("tail", len(msgs)))
}

func orderEvent(submitter, i int) pub.Event {
	customers := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	products := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "10"}

	return pub.Event{
		Type: "order",
		Payload: map[string]any{
			"order_id":    fmt.Sprintf("ORD-%02d-%04d", submitter, i+1),
			"customer_id": customers[rand.Intn(len(customers))],
			"product_id":  products[rand.Intn(len(products))],
			"amount":      10.0 + rand.Float64()*990.0,
			"timestamp":   time.Now().Format(time.RFC3339),
		},
	}
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", level, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(zap.AddCaller())
}

func newCouchbase(config Config) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(config.CouchbaseConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: config.CouchbaseUsername,
			Password: config.CouchbasePassword,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 10 * time.Second,
			KVTimeout:      5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(config.CouchbaseBucketName)
	if err := bucket.WaitUntilReady(5*time.Second, nil); err != nil {
		return nil, nil, fmt.Errorf("bucket not ready: %w", err)
	}

	return cluster, bucket, nil
}
