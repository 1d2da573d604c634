package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionCreated()
	m.SessionCreated()
	if got := testutil.ToFloat64(m.counters[SessionsCreated]); got != 2 {
		t.Fatalf("expected created counter 2, got %f", got)
	}

	m.Delivered(3 * time.Second)
	if got := testutil.ToFloat64(m.counters[Deliveries]); got != 1 {
		t.Fatalf("expected delivery counter 1, got %f", got)
	}
	hCollector := m.histos[TimeToDelivery].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	m.Expired(3)
	if got := testutil.ToFloat64(m.counters[SessionsExpired]); got != 3 {
		t.Fatalf("expected expired counter 3, got %f", got)
	}

	m.Active(4)
	if got := testutil.ToFloat64(m.gauges[SessionsActive]); got != 4 {
		t.Fatalf("expected active gauge 4, got %f", got)
	}

	m.Rejected("token")
	m.Rejected("token")
	m.Rejected("duplicate")
	expected := `
# HELP pairing_deliveries_rejected_total Deliveries refused by the relay, by reason.
# TYPE pairing_deliveries_rejected_total counter
pairing_deliveries_rejected_total{reason="duplicate"} 1
pairing_deliveries_rejected_total{reason="token"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), DeliveriesRejected); err != nil {
		t.Fatalf("unexpected rejected series: %v", err)
	}
}

func TestNewMetricsDefaultRegisterer(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	NewMetrics(nil).SessionCreated()
	n, err := testutil.GatherAndCount(reg, SessionsCreated)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected created series on the default registerer, got %d", n)
	}
}
