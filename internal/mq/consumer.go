package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Consumer потребляет сообщения из очереди RabbitMQ.
//
// Ошибка обработчика возвращает сообщение в очередь один раз;
// повторная ошибка на redelivered сообщении отправляет его в DLQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает потребление. Блокируется до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", c.queue)
			c.processDeliveries(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", c.queue)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения до закрытия канала или отмены ctx.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — сразу в DLQ
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		requeue := !raw.Redelivered
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"requeue", requeue,
			"error", err,
		)
		raw.Nack(false, requeue)
		return
	}

	raw.Ack(false)
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// После Unmarshal конверта payload — map[string]any
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}

// WorkspaceEventHandler возвращает Handler, извлекающий domain.WorkspaceEvent.
// Сообщения других типов подтверждаются без обработки.
func WorkspaceEventHandler(fn func(ctx context.Context, event domain.WorkspaceEvent) error) Handler {
	return func(ctx context.Context, d *Delivery) error {
		if d.Message.Type != MessageTypeWorkspaceEvent {
			return nil
		}

		event, err := ParsePayload[domain.WorkspaceEvent](&d.Message)
		if err != nil {
			return err
		}
		if event.WorkspaceID == "" {
			return fmt.Errorf("workspace event without workspace id")
		}
		return fn(ctx, event)
	}
}
