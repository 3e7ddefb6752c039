package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordFlush(t *testing.T) {
	r := NewRegistry()

	r.RecordFlush("orders", 10, 5*time.Millisecond, nil)
	r.RecordFlush("orders", 3, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushTotal.WithLabelValues("orders", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushTotal.WithLabelValues("orders", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.flushBatchSize))
}

func TestRegistry_Deliveries(t *testing.T) {
	r := NewRegistry()

	r.RecordDelivery("orders", "succeeded")
	r.RecordDelivery("orders", "succeeded")
	r.RecordDelivery("orders", "cancelled")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.deliveriesTotal.WithLabelValues("orders", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveriesTotal.WithLabelValues("orders", "cancelled")))
}

func TestRegistry_TrackQueueDepth(t *testing.T) {
	r := NewRegistry()

	r.TrackQueueDepth("orders", func() int { return 7 })
	r.TrackQueueDepth("invoices", func() int { return 1 })
	// a replacement producer for the same topic takes over the series
	r.TrackQueueDepth("orders", func() int { return 2 })

	expected := `
# HELP pub_producer_queue_depth Number of submitted events waiting in the inbound queue
# TYPE pub_producer_queue_depth gauge
pub_producer_queue_depth{topic="invoices"} 1
pub_producer_queue_depth{topic="orders"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "pub_producer_queue_depth"))
}

func TestRegistry_DatabaseOperation(t *testing.T) {
	r := NewRegistry()

	r.RecordDatabaseOperation("insert_message", time.Millisecond, nil)
	r.RecordDatabaseOperation("insert_message", time.Millisecond, errors.New("exists"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.databaseOperationTotal.WithLabelValues("insert_message", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.databaseOperationTotal.WithLabelValues("insert_message", "error")))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.SetSystemInfo("test", "now")
	r.RecordSubmit("orders", "accepted")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pub_producer_submit_total{status="accepted",topic="orders"} 1`)
	assert.Contains(t, string(body), `pub_system_info{build_time="now",version="test"} 1`)
	assert.Contains(t, string(body), "pub_start_time_seconds")
}
