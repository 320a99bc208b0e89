package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeSteps Exchange = "conduit.steps"
	ExchangeDLQ   Exchange = "conduit.dlq"

	// ExchangeDefault — default exchange RabbitMQ, маршрутизирует по имени очереди.
	// Через него уходят ответы в reply-очереди.
	ExchangeDefault Exchange = ""
)

// Queues — имена очередей.
const (
	QueueStepsLaunch Queue = "steps.launch"
	QueueDLQSteps    Queue = "dlq.steps"

	// QueueRepliesPrefix — префикс reply-очередей step operator'ов.
	QueueRepliesPrefix = "steps.replies."
)

// Routing keys.
const (
	RoutingKeyLaunch   RoutingKey = "launch"
	RoutingKeyDLQSteps RoutingKey = "steps"
)

// SetupTopology объявляет exchanges, очереди и bindings.
// Идемпотентна: повторный вызов с теми же параметрами ничего не меняет.
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
	for _, name := range []Exchange{ExchangeSteps, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQSteps),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// steps.launch — с DLQ: битые сообщения уходят в dlq.steps
		{QueueStepsLaunch, dlqArgs},
		{QueueDLQSteps, nil},
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
		{QueueStepsLaunch, RoutingKeyLaunch, ExchangeSteps},
		{QueueDLQSteps, RoutingKeyDLQSteps, ExchangeDLQ},
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

// DeclareReplyQueue объявляет reply-очередь step operator'а.
//
// Очередь не durable и удаляется вместе с последним consumer'ом:
// ответы нужны только пока launcher ждёт.
func DeclareReplyQueue(name string) func(ch *amqp.Channel) error {
	return func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(
			name,  // name
			false, // durable
			true,  // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare reply queue %s: %w", name, err)
		}
		return nil
	}
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conduit RabbitMQ Topology:

    conduit.steps (direct)
    └── steps.launch [routing: launch]
            Consumer: conduit-operator
            DLQ: dlq.steps

    conduit.dlq (direct)
    └── dlq.steps [routing: steps]
            Manual processing

    (default exchange)
    └── steps.replies.<id>
            Consumer: launcher waiting for step results
  `
}
