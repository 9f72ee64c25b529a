package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareExclusiveQueue declares a server-named, exclusive, auto-deleted queue
// and binds it to exchange once per pattern. The queue disappears with the
// connection, so it must be redeclared after every reconnect.
func DeclareExclusiveQueue(ch Channel, exchange string, patterns []string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, pattern := range patterns {
		if err := ch.QueueBind(q.Name, pattern, exchange, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("failed to bind queue %s to %s with %q: %w", q.Name, exchange, pattern, err)
		}
	}
	return q, nil
}
