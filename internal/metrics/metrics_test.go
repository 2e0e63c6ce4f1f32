package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordPerPipeline(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.BlockExtracted("bsc", "dirty")
	m.BlockExtracted("bsc", "dirty")
	m.BlockEmitted("bsc", "dirty", 3)
	m.BlockEmitted("bsc", "confirmed", 1)
	m.Retry("bsc", "dirty", "fetch")
	m.SetCursor("bsc", "dirty", 120)
	m.SetSafeHeight("bsc", "confirmed", 100)
	m.SetQueueDepth("bsc", "dirty", 4)

	if got := testutil.ToFloat64(m.blocksExtracted.WithLabelValues("bsc", "dirty")); got != 2 {
		t.Fatalf("blocks extracted = %v", got)
	}
	if got := testutil.ToFloat64(m.transfersEmitted.WithLabelValues("bsc", "dirty")); got != 3 {
		t.Fatalf("transfers emitted = %v", got)
	}
	if got := testutil.ToFloat64(m.blocksEmitted.WithLabelValues("bsc", "confirmed")); got != 1 {
		t.Fatalf("confirmed blocks emitted = %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("bsc", "dirty", "fetch")); got != 1 {
		t.Fatalf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.cursor.WithLabelValues("bsc", "dirty")); got != 120 {
		t.Fatalf("cursor = %v", got)
	}
	if got := testutil.ToFloat64(m.chainHeight.WithLabelValues("bsc", "confirmed")); got != 100 {
		t.Fatalf("safe height = %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues("bsc", "dirty")); got != 4 {
		t.Fatalf("queue depth = %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.BlockExtracted("x", "dirty")
	m.BlockEmitted("x", "dirty", 1)
	m.Retry("x", "dirty", "publish")
	m.SetCursor("x", "dirty", 1)
	m.SetSafeHeight("x", "dirty", 1)
	m.SetQueueDepth("x", "dirty", 1)
}
