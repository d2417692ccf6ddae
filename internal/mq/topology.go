package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorkspaces Exchange = "wsmaster.workspaces"
	ExchangeDLQ        Exchange = "wsmaster.dlq"
)

// Queues — имена очередей.
const (
	QueueWorkspaceEvents Queue = "workspaces.events"
	QueueDLQEvents       Queue = "dlq.events"
)

// Routing keys.
const (
	// RoutingKeyAllWorkspaceEvents — binding на все события workspace.
	RoutingKeyAllWorkspaceEvents RoutingKey = "workspace.#"
	RoutingKeyDLQEvents          RoutingKey = "events"
)

// WorkspaceRoutingKey возвращает ключ маршрутизации события: workspace.running и т.п.
func WorkspaceRoutingKey(t domain.EventType) RoutingKey {
	return RoutingKey("workspace." + strings.ToLower(string(t)))
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWorkspaces, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// workspaces.events — журнал событий, битые сообщения уходят в DLQ
		{QueueWorkspaceEvents, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
		}},
		{QueueDLQEvents, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueWorkspaceEvents, RoutingKeyAllWorkspaceEvents, ExchangeWorkspaces},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
