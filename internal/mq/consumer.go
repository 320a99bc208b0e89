package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conduit/internal/telemetry"
)

// Handler обрабатывает одно сообщение. Ошибка — сообщение не подтверждается.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — декодированный конверт вместе с исходной доставкой.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// ReplyTo — очередь для ответа (пусто, если ответ не ждут).
func (d *Delivery) ReplyTo() string {
	return d.Raw.ReplyTo
}

// CorrelationID связывает ответ с запросом launcher'а.
func (d *Delivery) CorrelationID() string {
	return d.Raw.CorrelationId
}

// Исход обработки доставки, метка conduit_mq_deliveries_total.
type outcome string

const (
	outcomeAck        outcome = "ack"
	outcomeRetry      outcome = "retry"
	outcomeDeadLetter outcome = "dead_letter"
)

// settleOutcome решает судьбу доставки: ошибка обработчика даёт одну
// повторную доставку, повторная ошибка уводит сообщение в DLQ.
func settleOutcome(handlerErr error, redelivered bool) outcome {
	switch {
	case handlerErr == nil:
		return outcomeAck
	case redelivered:
		return outcomeDeadLetter
	default:
		return outcomeRetry
	}
}

// decodeDelivery разбирает конверт Message из тела доставки.
func decodeDelivery(raw amqp.Delivery) (*Delivery, error) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("decode message envelope: missing type")
	}
	return &Delivery{Message: msg, Raw: raw}, nil
}

// ConsumerConfig — настройки Consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — QoS канала и число одновременно обрабатываемых сообщений.
	// По умолчанию 1.
	Prefetch int

	// Declare вызывается перед каждым Consume, в том числе после reconnect.
	// Эксклюзивные reply-очереди не переживают разрыв и объявляются здесь.
	Declare func(ch *amqp.Channel) error
}

// Consumer читает очередь и раздаёт доставки обработчику.
//
// Одновременно обрабатывается не больше Prefetch сообщений. Разрыв
// соединения не останавливает Consumer: он ждёт ReconnectNotify
// и подписывается заново.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	cancel context.CancelFunc
}

// NewConsumer создаёт Consumer поверх conn.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Start блокируется до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started", "prefetch", c.cfg.Prefetch)
			if err := c.drain(ctx, deliveries); err != nil {
				return err
			}
			c.logger.Warn("delivery stream closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("resubscribing after reconnect")
		}
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if c.cfg.Declare != nil {
		if err := c.cfg.Declare(ch); err != nil {
			return nil, fmt.Errorf("declare %s: %w", c.cfg.Queue, err)
		}
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	// Подтверждение вручную после обработчика
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает поток до его закрытия (nil) или отмены ctx.
// Перед возвратом дожидается обработчиков, которые уже начали работу.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(c.cfg.Prefetch)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return nil
			}
			g.Go(func() error {
				c.handle(ctx, raw)
				return nil
			})
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	delivery, err := decodeDelivery(raw)
	if err != nil {
		c.logger.Error("dropping malformed message", "error", err, "body", string(raw.Body))
		c.settle(raw, outcomeDeadLetter)
		return
	}

	logger := c.logger.With("message_id", delivery.Message.ID, "type", delivery.Message.Type)
	logger.Debug("received message")

	err = c.cfg.Handler(ctx, delivery)
	result := settleOutcome(err, raw.Redelivered)
	if err != nil {
		logger.Error("handler failed", "error", err, "outcome", result)
	}
	c.settle(raw, result)
}

func (c *Consumer) settle(raw amqp.Delivery, result outcome) {
	var err error
	switch result {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRetry:
		err = raw.Nack(false, true)
	case outcomeDeadLetter:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "outcome", result, "error", err)
	}
	telemetry.MQDeliveries.WithLabelValues(c.cfg.Queue, string(result)).Inc()
}

// ParsePayload приводит Payload конверта к типу T.
// После json.Unmarshal конверта payload — это map[string]any.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return result, nil
}
