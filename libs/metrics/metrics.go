package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consultcrm"

// Handler exposes the default registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BookingMetrics counts booking outcomes and slot resolution results.
type BookingMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	slotChecksTotal *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome (created, conflict, rejected, error)",
		}, []string{"plan", "outcome"}),
		slotChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "slot_checks_total",
			Help:      "Single-slot availability checks by resulting status",
		}, []string{"status"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "Time spent validating and persisting a booking",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotChecksTotal, m.bookingLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(plan, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(plan, outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveSlotCheck(status string) {
	if m == nil {
		return
	}
	m.slotChecksTotal.WithLabelValues(status).Inc()
}

// EventMetrics covers the outbox publisher and the notifier consumer.
type EventMetrics struct {
	publishedTotal *prometheus.CounterVec
	consumedTotal  *prometheus.CounterVec
	emailsTotal    *prometheus.CounterVec
}

func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events published to Kafka",
		}, []string{"event_type"}),
		consumedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Kafka messages handled by result (ok, duplicate, error)",
		}, []string{"event_type", "result"}),
		emailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Emails sent by template and status",
		}, []string{"template", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.publishedTotal, m.consumedTotal, m.emailsTotal)
	return m
}

func (m *EventMetrics) ObservePublished(eventType string, n int) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(eventType).Add(float64(n))
}

func (m *EventMetrics) ObserveConsumed(eventType, result string) {
	if m == nil {
		return
	}
	m.consumedTotal.WithLabelValues(eventType, result).Inc()
}

func (m *EventMetrics) ObserveEmail(template, status string) {
	if m == nil {
		return
	}
	m.emailsTotal.WithLabelValues(template, status).Inc()
}
