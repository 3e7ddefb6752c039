package controller

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"batchpub/internal/pub"
	"batchpub/internal/pub/metrics"
	"batchpub/internal/pub/tracing"
)

var errUnavailable = errors.New("cluster unavailable")

// stubController answers every call from fixed values.
type stubController struct {
	offset   uint64
	messages []pub.Message
	err      error
}

func (c *stubController) GetOffset(context.Context, string, int) (uint64, error) {
	return c.offset, c.err
}

func (c *stubController) CommitOffset(context.Context, string, int, uint64) error {
	return c.err
}

func (c *stubController) InsertMessage(context.Context, pub.Message) error {
	return c.err
}

func (c *stubController) LoadMessages(context.Context, string, int, uint64, int) ([]pub.Message, error) {
	return c.messages, c.err
}

func TestMetricsController(t *testing.T) {
	registry := metrics.NewRegistry()
	stub := &stubController{offset: 7}
	c := NewMetricsController(stub, registry)
	ctx := context.Background()

	offset, err := c.GetOffset(ctx, "orders", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), offset)
	require.NoError(t, c.CommitOffset(ctx, "orders", 0, 9))

	stub.err = errUnavailable
	require.ErrorIs(t, c.InsertMessage(ctx, pub.Message{ID: "m"}), errUnavailable)
	_, err = c.LoadMessages(ctx, "orders", 0, 0, 10)
	require.ErrorIs(t, err, errUnavailable)

	expected := `
# HELP pub_database_operation_total Total number of database operations
# TYPE pub_database_operation_total counter
pub_database_operation_total{operation="commit_offset",status="success"} 1
pub_database_operation_total{operation="get_offset",status="success"} 1
pub_database_operation_total{operation="insert_message",status="error"} 1
pub_database_operation_total{operation="load_messages",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry.Gatherer(), strings.NewReader(expected), "pub_database_operation_total"))
}

func TestTracedController(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := tracing.FromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")
	stub := &stubController{messages: []pub.Message{{ID: "a"}, {ID: "b"}}}
	c := NewTracedController(stub, tracer)
	ctx := context.Background()

	msgs, err := c.LoadMessages(ctx, "orders", 1, 4, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	stub.err = errUnavailable
	require.ErrorIs(t, c.CommitOffset(ctx, "orders", 1, 6), errUnavailable)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "controller.load_messages", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "orders", attrs["pub.topic"])
	assert.Equal(t, "1", attrs["pub.shard"])
	assert.Equal(t, "couchbase", attrs["db.system"])
	assert.Equal(t, "2", attrs["pub.messages_loaded"])

	assert.Equal(t, "controller.commit_offset", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, errUnavailable.Error(), spans[1].Status().Description)
}
