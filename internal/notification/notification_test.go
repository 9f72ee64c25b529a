package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marminbh/parking-svc/internal/events"
)

func TestGenerateHMACSignature(t *testing.T) {
	sig, err := GenerateHMACSignature([]byte(`{"a":1}`), "secret")
	require.NoError(t, err)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)

	again, err := GenerateHMACSignature([]byte(`{"a":1}`), "secret")
	require.NoError(t, err)
	assert.Equal(t, sig, again)

	_, err = GenerateHMACSignature([]byte(`{}`), "")
	assert.Error(t, err)
}

func TestWebhookNotifier_SignsBody(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret", time.Second, zaptest.NewLogger(t))
	alert := Alert{RoutingKey: events.RoutingKeySensorFreed, Event: events.SensorFreed{SpotID: "S1"}, ReceivedAt: time.Unix(0, 0).UTC()}
	require.NoError(t, n.Notify(context.Background(), alert))

	want, err := GenerateHMACSignature(gotBody, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, want, gotSig)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "sensor.freed", decoded["routingKey"])
	assert.Equal(t, "S1", decoded["event"].(map[string]any)["spotId"])
}

func TestWebhookNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret", time.Second, zaptest.NewLogger(t))
	err := n.Notify(context.Background(), Alert{RoutingKey: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type countingNotifier struct {
	alerts []Alert
	err    error
}

func (c *countingNotifier) Notify(ctx context.Context, alert Alert) error {
	c.alerts = append(c.alerts, alert)
	return c.err
}

func TestHandleEvent_FansOutAndNeverFails(t *testing.T) {
	failing := &countingNotifier{err: assert.AnError}
	ok := &countingNotifier{}
	s := NewService(zaptest.NewLogger(t), NewLogNotifier(zaptest.NewLogger(t)), failing, ok)

	e := events.ReservationCreated{ReservationID: "r1", SpotID: "S1"}
	err := s.HandleEvent(context.Background(), events.Envelope{RoutingKey: e.RoutingKey(), Event: e, DeliveryTag: 3})
	require.NoError(t, err)

	require.Len(t, ok.alerts, 1)
	assert.Len(t, failing.alerts, 1)
	assert.Equal(t, events.RoutingKeyReservationCreated, ok.alerts[0].RoutingKey)
}
