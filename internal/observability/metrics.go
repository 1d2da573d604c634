package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SessionsCreated    = "pairing_sessions_created_total"
	Deliveries         = "pairing_deliveries_total"
	DeliveriesRejected = "pairing_deliveries_rejected_total"
	SessionsExpired    = "pairing_sessions_expired_total"
	SessionsActive     = "pairing_sessions_active"
	TimeToDelivery     = "pairing_time_to_delivery_seconds"
)

// Metrics exposes the relay's prometheus series.
type Metrics struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	rejected *prometheus.CounterVec
}

// NewMetrics registers the relay series on reg, or on the default registerer
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SessionsCreated,
		Help: "Pairing sessions handed out to web clients.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: Deliveries,
		Help: "Biometric payloads accepted from forwarders.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SessionsExpired,
		Help: "Sessions removed by the sweeper after their TTL.",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: SessionsActive,
		Help: "Sessions currently held in memory.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    TimeToDelivery,
		Help:    "Time between session creation and payload delivery.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: DeliveriesRejected,
		Help: "Deliveries refused by the relay, by reason.",
	}, []string{"reason"})

	reg.MustRegister(created, delivered, expired, active, latency, rejected)

	return &Metrics{
		counters: map[string]prometheus.Counter{
			SessionsCreated: created,
			Deliveries:      delivered,
			SessionsExpired: expired,
		},
		gauges: map[string]prometheus.Gauge{
			SessionsActive: active,
		},
		histos: map[string]prometheus.Observer{
			TimeToDelivery: latency,
		},
		rejected: rejected,
	}
}

func (m *Metrics) SessionCreated() {
	m.counters[SessionsCreated].Inc()
}

func (m *Metrics) Delivered(elapsed time.Duration) {
	m.counters[Deliveries].Inc()
	m.histos[TimeToDelivery].Observe(elapsed.Seconds())
}

func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Expired(n int) {
	m.counters[SessionsExpired].Add(float64(n))
}

func (m *Metrics) Active(n int) {
	m.gauges[SessionsActive].Set(float64(n))
}
