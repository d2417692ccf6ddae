package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/wsmaster/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkspaceEvent MessageType = "workspace.event"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	publishing, err := newPublishing(msg)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishWorkspaceEvent публикует событие жизненного цикла workspace.
// Сигнатура совпадает с events.Subscriber.
func (p *Publisher) PublishWorkspaceEvent(ctx context.Context, event domain.WorkspaceEvent) error {
	return p.Publish(ctx, ExchangeWorkspaces, WorkspaceRoutingKey(event.Type), newEventMessage(event))
}

// newEventMessage оборачивает событие в конверт.
func newEventMessage(event domain.WorkspaceEvent) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeWorkspaceEvent,
		Payload:   event,
		Timestamp: event.Timestamp,
	}
}

// newPublishing сериализует сообщение в AMQP publishing.
func newPublishing(msg *Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}, nil
}
