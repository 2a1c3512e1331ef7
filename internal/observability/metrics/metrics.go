package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the payment-driven booking
// flow. All methods are nil-safe so wiring metrics stays optional.
type BookingMetrics struct {
	callbackTotal   *prometheus.CounterVec
	slotConflicts   prometheus.Counter
	callbackLatency *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		callbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "callback_total",
			Help:      "Total gateway payment callbacks by kind and outcome",
		}, []string{"kind", "outcome"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_conflict_total",
			Help:      "Deposit promotions rejected because the slot was taken",
		}),
		callbackLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "callback_latency_seconds",
			Help:      "Latency of gateway callback processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callbackTotal, m.slotConflicts, m.callbackLatency)
	return m
}

func (m *BookingMetrics) ObserveCallback(kind, outcome string) {
	if m == nil {
		return
	}
	m.callbackTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *BookingMetrics) ObserveCallbackLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.callbackLatency.WithLabelValues(kind).Observe(seconds)
}
