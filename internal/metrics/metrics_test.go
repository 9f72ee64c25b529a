package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Published("sensor.occupied", nil)
	m.Published("sensor.occupied", errors.New("down"))
	m.Consumed("billing", "reservation.created", ResultOK)
	m.SetConnected(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("sensor.occupied", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("sensor.occupied", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsConsumed.WithLabelValues("billing", "reservation.created", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusConnected))

	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BusConnected))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Published("x", nil)
		m.Consumed("q", "x", ResultOK)
		m.SetConnected(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Published("sensor.freed", nil)

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `parking_events_published_total{result="ok",routing_key="sensor.freed"} 1`)
	assert.Contains(t, string(body), "parking_bus_connected 0")
}
