// Package tracing sets up OpenTelemetry export and gives the decorators one way
// to open and close spans.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the OTLP endpoint, the sampling ratio and span batching.
type Config struct {
	ServiceName    string        `env:"TRACING_SERVICE_NAME" envDefault:"batchpub"`
	ServiceVersion string        `env:"TRACING_SERVICE_VERSION" envDefault:"1.0.0"`
	Environment    string        `env:"TRACING_ENVIRONMENT" envDefault:"development"`
	Endpoint       string        `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate     float64       `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"TRACING_BATCH_TIMEOUT" envDefault:"1s"`
	ExportTimeout  time.Duration `env:"TRACING_EXPORT_TIMEOUT" envDefault:"30s"`
	MaxExportBatch int           `env:"TRACING_MAX_EXPORT_BATCH" envDefault:"512"`
	MaxQueueSize   int           `env:"TRACING_MAX_QUEUE_SIZE" envDefault:"2048"`
}

type Tracer struct {
	tracer trace.Tracer
}

// FromProvider builds a Tracer on an existing provider without touching the
// global one.
func FromProvider(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// NewTracer exports spans over OTLP HTTP and installs the provider globally. The
// returned cleanup flushes pending spans and stops the exporter.
func NewTracer(config Config) (*Tracer, func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("service.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(config.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithExportTimeout(config.ExportTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cleanup := func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
		return tp.Shutdown(ctx)
	}

	return FromProvider(tp, config.ServiceName), cleanup, nil
}

// Start opens a span carrying attrs.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End sets the span status from err and ends it.
func (t *Tracer) End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", fmt.Sprintf("%T", err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func Topic(topic string) attribute.KeyValue {
	return attribute.String("pub.topic", topic)
}

func Shard(shard int) attribute.KeyValue {
	return attribute.Int("pub.shard", shard)
}

func ProducerID(id string) attribute.KeyValue {
	return attribute.String("pub.producer_id", id)
}

func BatchSize(n int) attribute.KeyValue {
	return attribute.Int("pub.batch_size", n)
}

func Offset(offset uint64) attribute.KeyValue {
	return attribute.Int64("pub.offset", int64(offset))
}

// DBOperation tags a storage call.
func DBOperation(operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "couchbase"),
		attribute.String("db.operation", operation),
	}
}
