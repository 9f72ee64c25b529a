package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marminbh/parking-svc/internal/billing"
	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
	"github.com/marminbh/parking-svc/internal/repository/repositorytest"
	"github.com/marminbh/parking-svc/internal/reservations"
	"github.com/marminbh/parking-svc/internal/sensor"
	"github.com/marminbh/parking-svc/internal/spots"
)

type fakePublisher struct {
	err       error
	published []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, e events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, e)
	return nil
}

type fakeChecker map[string]*reservations.SpotStatus

func (c fakeChecker) GetSpot(ctx context.Context, spotID string) (*reservations.SpotStatus, error) {
	if spotID == "broken" {
		return nil, errors.New("connection refused")
	}
	s, ok := c[spotID]
	if !ok {
		return nil, reservations.ErrSpotNotFound
	}
	return s, nil
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func spotsApp(t *testing.T) (*fiber.App, *repositorytest.MemorySpotStore) {
	store := repositorytest.NewMemorySpotStore()
	h := NewSpotsHandler(spots.NewService(store, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	app := fiber.New()
	app.Get("/spots", h.List)
	app.Get("/spots/:id", h.Get)
	app.Post("/spots", h.Create)
	return app, store
}

func TestSpotsHandler_CreateAndGet(t *testing.T) {
	app, _ := spotsApp(t)

	status, body := do(t, app, http.MethodPost, "/spots", `{"location":"A-1","type":"ev","pricePerHour":2.5}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "A-1", body["location"])
	assert.Equal(t, false, body["isOccupied"])
	id, _ := body["_id"].(string)
	require.NotEmpty(t, id)

	status, body = do(t, app, http.MethodGet, "/spots/"+id, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["_id"])
}

func TestSpotsHandler_NotFound(t *testing.T) {
	app, _ := spotsApp(t)

	for _, id := range []string{"6650f0c2a1b2c3d4e5f60718", "not-an-id"} {
		status, body := do(t, app, http.MethodGet, "/spots/"+id, "")
		assert.Equal(t, http.StatusNotFound, status, id)
		assert.Equal(t, "Spot not found", body["error"], id)
	}
}

func TestSpotsHandler_RejectsInvalidSpot(t *testing.T) {
	app, _ := spotsApp(t)

	status, _ := do(t, app, http.MethodPost, "/spots", `{"location":"A-1","type":"truck"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/spots", `{`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func reservationsApp(t *testing.T, checker fakeChecker, pub *fakePublisher) *fiber.App {
	svc := reservations.NewService(checker, repositorytest.NewMemoryReservationStore(), pub, zaptest.NewLogger(t))
	h := NewReservationsHandler(svc, zaptest.NewLogger(t))
	app := fiber.New()
	app.Post("/reservations", h.Create)
	app.Get("/reservations", h.List)
	return app
}

func reservationBody(spotID string) string {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	b, _ := json.Marshal(map[string]any{
		"spotId":    spotID,
		"userId":    "u1",
		"startTime": start,
		"endTime":   start.Add(2 * time.Hour),
	})
	return string(b)
}

func TestReservationsHandler_Create(t *testing.T) {
	pub := &fakePublisher{}
	app := reservationsApp(t, fakeChecker{"s1": {ID: "s1"}}, pub)

	status, body := do(t, app, http.MethodPost, "/reservations", reservationBody("s1"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", body["status"])
	assert.NotEmpty(t, body["_id"])
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.RoutingKeyReservationCreated, pub.published[0].RoutingKey())
}

func TestReservationsHandler_AcceptsDatesWithoutZone(t *testing.T) {
	pub := &fakePublisher{}
	app := reservationsApp(t, fakeChecker{"s1": {ID: "s1"}}, pub)

	status, body := do(t, app, http.MethodPost, "/reservations",
		`{"spotId":"s1","userId":"u1","startTime":"2024-06-01T10:00:00","endTime":"2024-06-01T12:00"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "2024-06-01T10:00:00Z", body["startTime"])
	assert.Equal(t, "2024-06-01T12:00:00Z", body["endTime"])
	require.Len(t, pub.published, 1)
}

func TestReservationsHandler_ErrorMapping(t *testing.T) {
	checker := fakeChecker{
		"busy": {ID: "busy", IsOccupied: true},
		"free": {ID: "free"},
	}

	tests := []struct {
		name    string
		body    string
		pubErr  error
		status  int
		message string
	}{
		{"occupied", reservationBody("busy"), nil, http.StatusBadRequest, "Spot is not available"},
		{"unknown spot", reservationBody("ghost"), nil, http.StatusNotFound, "Spot not found"},
		{"lookup failure", reservationBody("broken"), nil, http.StatusInternalServerError, "Error creating reservation"},
		{"invalid window", `{"spotId":"free","userId":"u1"}`, nil, http.StatusBadRequest, ""},
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := reservationsApp(t, checker, &fakePublisher{err: tt.pubErr})
			status, body := do(t, app, http.MethodPost, "/reservations", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			}
		})
	}
}

func TestReservationsHandler_PublishFailureNamesStoredReservation(t *testing.T) {
	app := reservationsApp(t, fakeChecker{"s1": {ID: "s1"}}, &fakePublisher{err: rabbitmq.ErrNotConnected})

	status, body := do(t, app, http.MethodPost, "/reservations", reservationBody("s1"))
	assert.Equal(t, http.StatusInternalServerError, status)
	id, _ := body["reservationId"].(string)
	require.NotEmpty(t, id)

	req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var stored []models.Reservation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID.String())
}

func TestBillsHandler_List(t *testing.T) {
	store := repositorytest.NewMemoryBillStore()
	svc := billing.NewService(store, billing.DefaultFlatAmount, zaptest.NewLogger(t))
	require.NoError(t, svc.HandleEvent(context.Background(), events.Envelope{
		RoutingKey: events.RoutingKeyReservationCreated,
		Event:      events.ReservationCreated{ReservationID: "r1", SpotID: "s1"},
	}))

	app := fiber.New()
	app.Get("/bills", NewBillsHandler(svc, zaptest.NewLogger(t)).List)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/bills", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var bills []models.Bill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bills))
	require.Len(t, bills, 1)
	assert.Equal(t, "r1", bills[0].ReservationID)
	assert.Equal(t, 50.0, bills[0].Amount)
	assert.Equal(t, models.BillStatusPending, bills[0].Status)
}

func sensorApp(t *testing.T, pub *fakePublisher) *fiber.App {
	h := NewSensorHandler(sensor.NewService(pub), zaptest.NewLogger(t))
	app := fiber.New()
	app.Post("/events/occupied", h.Occupied)
	app.Post("/events/freed", h.Freed)
	return app
}

func TestSensorHandler_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	app := sensorApp(t, pub)

	status, body := do(t, app, http.MethodPost, "/events/occupied", `{"spotId":"s1","vehicleId":"v9"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "published", body["status"])
	event, _ := body["event"].(map[string]any)
	assert.Equal(t, "s1", event["spotId"])
	assert.Equal(t, "v9", event["vehicleId"])

	status, _ = do(t, app, http.MethodPost, "/events/freed", `{"spotId":"s1"}`)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.RoutingKeySensorOccupied, pub.published[0].RoutingKey())
	assert.Equal(t, events.RoutingKeySensorFreed, pub.published[1].RoutingKey())
}

func TestSensorHandler_BusDown(t *testing.T) {
	app := sensorApp(t, &fakePublisher{err: rabbitmq.ErrNotConnected})

	status, body := do(t, app, http.MethodPost, "/events/freed", `{"spotId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "RabbitMQ not connected", body["error"])
}

func TestSensorHandler_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed json", `{`, "invalid request body"},
		{"missing spotId", `{"vehicleId":"v1"}`, "spotId is required"},
		{"blank spotId", `{"spotId":"  "}`, "spotId is required"},
	}

	for _, path := range []string{"/events/occupied", "/events/freed"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				pub := &fakePublisher{}
				app := sensorApp(t, pub)

				status, body := do(t, app, http.MethodPost, path, tt.body)
				assert.Equal(t, http.StatusBadRequest, status)
				assert.Equal(t, tt.message, body["error"])
				assert.Empty(t, pub.published)
			})
		}
	}
}

type busState struct{ state rabbitmq.State }

func (b busState) IsHealthy() bool        { return b.state == rabbitmq.StateConnected }
func (b busState) State() rabbitmq.State { return b.state }

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler("spot-service").
		Add("rabbitmq", BusCheck(busState{rabbitmq.StateConnected})).
		Add("database", func(ctx context.Context) error { return nil })

	app := fiber.New()
	app.Get("/health", healthy.HealthCheck)
	status, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "spot-service", body["service"])

	down := NewHealthHandler("sensor-service").
		Add("rabbitmq", BusCheck(busState{rabbitmq.StateConnecting}))
	app = fiber.New()
	app.Get("/health", down.HealthCheck)
	status, body = do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])
	services, _ := body["services"].(map[string]any)
	assert.Equal(t, "unhealthy: connecting", services["rabbitmq"])
}
