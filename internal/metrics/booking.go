package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for booking commands.
type BookingMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	slotsReturned   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapy",
			Subsystem: "booking",
			Name:      "commands_total",
			Help:      "Booking commands by operation and outcome (ok or error kind)",
		}, []string{"operation", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "therapy",
			Subsystem: "booking",
			Name:      "command_duration_seconds",
			Help:      "Latency of booking commands",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "therapy",
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Number of open slots returned per availability query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.commandsTotal, m.commandDuration, m.slotsReturned)
	return m
}

func (m *BookingMetrics) ObserveCommand(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(operation, outcome).Inc()
	m.commandDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveSlots(n int) {
	if m == nil {
		return
	}
	m.slotsReturned.Observe(float64(n))
}
