package consumer

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/metrics"
)

// Handler is implemented by every consumer to handle decoded events.
type Handler interface {
	HandleEvent(ctx context.Context, env events.Envelope) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, env events.Envelope) error

func (f HandlerFunc) HandleEvent(ctx context.Context, env events.Envelope) error {
	return f(ctx, env)
}

// ErrHandlerPanic wraps a panic recovered from a handler.
var ErrHandlerPanic = errors.New("handler panicked")

// ProcessMessage runs one delivery through handler:
// 1. Decodes the body using the schema selected by the routing key
// 2. Calls the handler, recovering from panics
// 3. ACKs on success, NACKs (no requeue) on failure so the message is dropped
//
// It returns the metrics result label describing the outcome.
func ProcessMessage(ctx context.Context, log *zap.Logger, queue string, msg amqp.Delivery, handler Handler) string {
	fields := []zap.Field{
		zap.String("queue", queue),
		zap.String("routing_key", msg.RoutingKey),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	}
	log.Debug("Received message from queue", fields...)

	event, err := events.Decode(msg.RoutingKey, msg.Body)
	if err != nil {
		log.Error("Failed to decode message, dropping",
			append(fields, zap.ByteString("body", msg.Body), zap.Error(err))...)
		rejectMessage(log, msg, fields)
		return metrics.ResultRejected
	}

	env := events.Envelope{
		RoutingKey:  msg.RoutingKey,
		Event:       event,
		DeliveryTag: msg.DeliveryTag,
		Redelivered: msg.Redelivered,
	}
	if err := invoke(ctx, handler, env); err != nil {
		log.Error("Failed to process message, dropping", append(fields, zap.Error(err))...)
		rejectMessage(log, msg, fields)
		return metrics.ResultError
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", append(fields, zap.Error(err))...)
		return metrics.ResultError
	}

	log.Debug("Message processed successfully", fields...)
	return metrics.ResultOK
}

func invoke(ctx context.Context, handler Handler, env events.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler.HandleEvent(ctx, env)
}

// rejectMessage rejects a message (NACK with requeue=false)
func rejectMessage(log *zap.Logger, msg amqp.Delivery, fields []zap.Field) {
	if err := msg.Nack(false, false); err != nil {
		log.Error("Failed to nack message", append(fields, zap.Error(err))...)
	}
}
