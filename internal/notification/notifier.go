// Package notification listens to every event on the bus and fans alerts out
// to the configured notifiers.
package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
)

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-Parking-Signature"

// Alert is what a notifier receives.
type Alert struct {
	RoutingKey string       `json:"routingKey"`
	Event      events.Event `json:"event"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	n.logger.Info("Sending alert to user",
		zap.String("routing_key", alert.RoutingKey),
		zap.Any("event", alert.Event),
	)
	return nil
}

// GenerateHMACSignature returns the signature in the format sha256=<hex_encoded_hmac>
func GenerateHMACSignature(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write payload to HMAC: %w", err)
	}
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// WebhookNotifier POSTs alerts as signed JSON. Each alert is attempted once.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookNotifier(url, secret string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	signature, err := GenerateHMACSignature(payload, n.secret)
	if err != nil {
		return fmt.Errorf("failed to generate HMAC signature: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	n.logger.Debug("Webhook delivered",
		zap.String("routing_key", alert.RoutingKey),
		zap.Int("http_status", resp.StatusCode),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
