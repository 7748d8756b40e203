package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetrics_ObserveCommand(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCommand("create", "ok", 10*time.Millisecond)
	m.ObserveCommand("create", "ok", 5*time.Millisecond)
	m.ObserveCommand("create", "ValidationError", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("create", "ValidationError")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandDuration))
}

func TestBookingMetrics_NilSafe(t *testing.T) {
	var m *BookingMetrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("cancel", "ok", time.Second)
		m.ObserveSlots(3)
	})
}
