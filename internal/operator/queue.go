package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/mq"
)

// Ошибки step operator.
var (
	// ErrRemoteStepFailed — entrypoint завершился с ошибкой на стороне worker.
	ErrRemoteStepFailed = errors.New("remote step failed")

	// ErrNoReply — ответ не пришёл за отведённое время.
	ErrNoReply = errors.New("no reply from step operator")
)

// Name — имя step operator'а, под которым он настраивается в шагах.
const Name = "queue"

const defaultTimeout = 2 * time.Hour

// StepPublisher публикует запросы на выполнение шагов.
type StepPublisher interface {
	PublishStepLaunch(ctx context.Context, payload mq.StepLaunchPayload, replyTo, correlationID string) error
}

// QueueOperator выполняет entrypoint шага на conduit-operator через RabbitMQ.
//
// Launch публикует запрос в steps.launch и блокируется до ответа с тем же
// correlation id в reply-очереди. Ответы разбирает HandleReply, который
// подключается как mq.Handler к consumer reply-очереди.
type QueueOperator struct {
	publisher  StepPublisher
	replyQueue string
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]chan mq.StepResultPayload
}

// Config — конфигурация QueueOperator.
type Config struct {
	Publisher StepPublisher

	// ReplyQueue — имя reply-очереди. Пусто — сгенерировать.
	ReplyQueue string

	// Timeout — сколько ждать результата шага (default: 2h).
	Timeout time.Duration

	Logger *slog.Logger
}

// NewQueueOperator создаёт QueueOperator.
func NewQueueOperator(cfg Config) *QueueOperator {
	replyQueue := cfg.ReplyQueue
	if replyQueue == "" {
		replyQueue = mq.QueueRepliesPrefix + uuid.NewString()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueOperator{
		publisher:  cfg.Publisher,
		replyQueue: replyQueue,
		timeout:    timeout,
		logger:     logger,
		pending:    make(map[string]chan mq.StepResultPayload),
	}
}

// ReplyQueue возвращает имя reply-очереди.
func (o *QueueOperator) ReplyQueue() string {
	return o.replyQueue
}

// Launch отправляет entrypoint на выполнение и ждёт результата.
func (o *QueueOperator) Launch(ctx context.Context, info domain.StepRunInfo, entrypoint []string) error {
	correlationID := uuid.NewString()
	replies := make(chan mq.StepResultPayload, 1)

	o.mu.Lock()
	o.pending[correlationID] = replies
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.pending, correlationID)
		o.mu.Unlock()
	}()

	payload := mq.StepLaunchPayload{
		StepName:   info.Config.Name,
		StepRunID:  info.StepRunID,
		RunID:      info.RunID,
		RunName:    info.RunName,
		Entrypoint: entrypoint,
	}
	if err := o.publisher.PublishStepLaunch(ctx, payload, o.replyQueue, correlationID); err != nil {
		return fmt.Errorf("publish step launch: %w", err)
	}

	o.logger.Info("step sent to operator",
		"step", info.Config.Name,
		"step_run_id", info.StepRunID,
		"correlation_id", correlationID,
	)

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: step %s after %s", ErrNoReply, info.Config.Name, o.timeout)
	case result := <-replies:
		if result.Status != mq.ResultCompleted {
			return fmt.Errorf("%w: step %s exit code %d: %s", ErrRemoteStepFailed, info.Config.Name, result.ExitCode, result.Error)
		}
		return nil
	}
}

// HandleReply доставляет результат ожидающему Launch.
// Ответ без ожидающего (launcher уже ушёл по таймауту) подтверждается и отбрасывается.
func (o *QueueOperator) HandleReply(_ context.Context, delivery *mq.Delivery) error {
	result, err := mq.ParsePayload[mq.StepResultPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse step.result payload", "error", err)
		return nil
	}

	o.mu.Lock()
	replies, ok := o.pending[delivery.CorrelationID()]
	o.mu.Unlock()

	if !ok {
		o.logger.Warn("dropping reply without waiter",
			"correlation_id", delivery.CorrelationID(),
			"step_run_id", result.StepRunID,
		)
		return nil
	}

	select {
	case replies <- result:
	default:
	}
	return nil
}
