package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStepLaunch MessageType = "step.launch"
	MessageTypeStepResult MessageType = "step.result"
)

// Статусы в StepResultPayload.
const (
	ResultCompleted = "COMPLETED"
	ResultFailed    = "FAILED"
)

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

// Message — сообщение для публикации.
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

// StepLaunchPayload — запрос на выполнение entrypoint шага.
type StepLaunchPayload struct {
	StepName   string    `json:"step_name"`
	StepRunID  uuid.UUID `json:"step_run_id"`
	RunID      uuid.UUID `json:"run_id"`
	RunName    string    `json:"run_name"`
	Entrypoint []string  `json:"entrypoint"`
}

// StepResultPayload — результат выполнения entrypoint.
type StepResultPayload struct {
	StepRunID uuid.UUID `json:"step_run_id"`
	Status    string    `json:"status"` // COMPLETED или FAILED
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`

	// Output — хвост stdout/stderr процесса.
	Output string `json:"output,omitempty"`
}

// Envelope — свойства AMQP сообщения для request/reply.
type Envelope struct {
	ReplyTo       string
	CorrelationID string
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, env Envelope) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:     msg.ID,
				Timestamp:     msg.Timestamp,
				ReplyTo:       env.ReplyTo,
				CorrelationId: env.CorrelationID,
				Body:          body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"correlation_id", env.CorrelationID,
		)

		return nil
	})
}

// PublishStepLaunch отправляет шаг на выполнение.
// Потребитель: conduit-operator. Ответ придёт в replyTo с тем же correlationID.
func (p *Publisher) PublishStepLaunch(ctx context.Context, payload StepLaunchPayload, replyTo, correlationID string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeStepLaunch,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSteps, RoutingKeyLaunch, msg, Envelope{
		ReplyTo:       replyTo,
		CorrelationID: correlationID,
	})
}

// Reply отправляет результат в reply-очередь через default exchange.
func (p *Publisher) Reply(ctx context.Context, replyTo, correlationID string, payload StepResultPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeStepResult,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeDefault, RoutingKey(replyTo), msg, Envelope{CorrelationID: correlationID})
}
