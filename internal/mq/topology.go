package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange это имя обменника.
type Exchange string

// Queue это имя очереди.
type Queue string

// RoutingKey это ключ маршрутизации.
type RoutingKey string

const (
	ExchangeRuns    Exchange = "artflow.runs"
	ExchangeOutputs Exchange = "artflow.outputs"
	ExchangeDLQ     Exchange = "artflow.dlq"
)

const (
	QueueRunsPending Queue = "runs.pending"
	QueueDLQRuns     Queue = "dlq.runs"
)

const (
	RoutingKeyPending      RoutingKey = "pending"
	RoutingKeyFinished     RoutingKey = "finished"
	RoutingKeyOutputStatus RoutingKey = "output.status"
	RoutingKeyDLQRuns      RoutingKey = "runs"
)

// SetupTopology объявляет exchanges, очереди и привязки. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeRuns, amqp.ExchangeDirect},
			{ExchangeOutputs, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		}
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		queues := []struct {
			name Queue
			args amqp.Table
		}{
			// Run, упавший повторно, уходит в DLQ вместо бесконечного requeue.
			{QueueRunsPending, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
			}},
			{QueueDLQRuns, nil},
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		bindings := []struct {
			queue    Queue
			key      RoutingKey
			exchange Exchange
		}{
			{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
			{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
		}
		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo описывает топологию для логов при старте.
func TopologyInfo() string {
	return `
  artflow.runs (direct)
  └── runs.pending [pending]      consumer: worker, DLQ: dlq.runs
      finished                    no queue, subscribers bind their own
  artflow.outputs (topic)
      output.status               no queue, subscribers bind their own
  artflow.dlq (direct)
  └── dlq.runs [runs]             manual processing
`
}
