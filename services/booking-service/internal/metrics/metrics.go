// Package metrics holds the booking service's Prometheus instruments. Every method is safe
// on a nil receiver so tests and tools can pass nil.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	availabilityTotal   *prometheus.CounterVec
	availabilityLatency *prometheus.HistogramVec
	reservationsTotal   *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	scorerDegraded      prometheus.Counter
	eventsTotal         *prometheus.CounterVec
	consumedTotal       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "booking",
			Name:      "availability_requests_total",
			Help:      "Availability queries by scoring mode and cache outcome",
		}, []string{"mode", "cache"}),
		availabilityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotkeeper",
			Subsystem: "booking",
			Name:      "availability_duration_seconds",
			Help:      "Time to compute an availability list",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Reservation attempts by result",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Appointment status and payment transitions by channel and result",
		}, []string{"channel", "result"}),
		scorerDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "booking",
			Name:      "scorer_degraded_total",
			Help:      "Availability responses served unscored because the scorer failed",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "events",
			Name:      "delivered_total",
			Help:      "Collaborator events by sink and result",
		}, []string{"sink", "result"}),
		consumedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotkeeper",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Inbound collaborator messages by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.availabilityLatency, m.reservationsTotal, m.transitionsTotal,
		m.scorerDegraded, m.eventsTotal, m.consumedTotal)
	return m
}

func (m *Metrics) ObserveAvailability(mode string, cacheHit bool, seconds float64) {
	if m == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.availabilityTotal.WithLabelValues(mode, cache).Inc()
	m.availabilityLatency.WithLabelValues(mode).Observe(seconds)
}

// ObserveReservation result is one of created, conflict, error.
func (m *Metrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(channel, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ScorerDegraded() {
	if m == nil {
		return
	}
	m.scorerDegraded.Inc()
}

// ObserveEvent result is one of delivered, failed, dropped.
func (m *Metrics) ObserveEvent(sink, result string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) ObserveConsumed(result string) {
	if m == nil {
		return
	}
	m.consumedTotal.WithLabelValues(result).Inc()
}
