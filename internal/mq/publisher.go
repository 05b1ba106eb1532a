package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Artflow/internal/domain"
)

// MessageType это тип сообщения.
type MessageType string

const (
	MessageTypeRunPending   MessageType = "run.pending"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeOutputStatus MessageType = "output.status"
)

// Message это конверт всех сообщений.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunPendingPayload публикуется при создании run.
type RunPendingPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunFinishedPayload публикуется при завершении run.
type RunFinishedPayload struct {
	RunID  uuid.UUID        `json:"run_id"`
	Status domain.RunStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// OutputStatusPayload публикуется при каждой записи статуса Output-узла.
type OutputStatusPayload struct {
	RunID  uuid.UUID           `json:"run_id"`
	NodeID string              `json:"node_id"`
	Status domain.OutputStatus `json:"status"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish сериализует сообщение и отправляет его как persistent.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		p.logger.DebugContext(ctx, "published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

func newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// PublishRunPending сообщает воркерам о новом run.
func (p *Publisher) PublishRunPending(ctx context.Context, runID uuid.UUID) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyPending,
		newMessage(MessageTypeRunPending, RunPendingPayload{RunID: runID}))
}

// PublishRunFinished сообщает о завершении run.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished,
		newMessage(MessageTypeRunFinished, payload))
}

// PublishOutputStatus сообщает об изменении статуса Output-узла.
func (p *Publisher) PublishOutputStatus(ctx context.Context, payload OutputStatusPayload) error {
	return p.Publish(ctx, ExchangeOutputs, RoutingKeyOutputStatus,
		newMessage(MessageTypeOutputStatus, payload))
}
