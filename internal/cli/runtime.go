package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/launcher"
	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/operator"
	"github.com/shaiso/Conduit/internal/steps"
	"github.com/shaiso/Conduit/internal/store"
)

// Runtime — зависимости команд, которые запускают шаги.
type Runtime struct {
	Store     store.Store
	Artifacts artifacts.Store
	Registry  *steps.Registry
	InProcess executor.Executor
	Operators map[string]*executor.Operator
	Identity  launcher.Identity

	// Parallelism — значение по умолчанию для conduit run.
	Parallelism int

	Logger *slog.Logger

	closers []func()
}

// NewRuntime собирает Runtime из конфигурации окружения.
//
// Если задан RABBITMQ_URL, настраивается step operator "queue": запросы
// уходят в steps.launch, ответы читаются из собственной reply-очереди.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	artifactStore, err := cfg.OpenArtifactStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := steps.DefaultRegistry()
	rt := &Runtime{
		Store:       cfg.StoreClient(),
		Artifacts:   artifactStore,
		Registry:    registry,
		InProcess:   executor.NewInProcess(registry, artifactStore, logger),
		Operators:   make(map[string]*executor.Operator),
		Identity:    launcher.Identity{UserID: cfg.UserID, ProjectID: cfg.ProjectID},
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	}

	if cfg.RabbitMQURL != "" {
		if err := rt.setupQueueOperator(ctx, cfg); err != nil {
			rt.Close()
			return nil, err
		}
	}

	return rt, nil
}

func (rt *Runtime) setupQueueOperator(ctx context.Context, cfg *config.Config) error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve conduit binary: %w", err)
	}

	conn, err := mq.NewConnection(cfg.MQConnection(mq.ConnectionLauncher, rt.Logger))
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	rt.closers = append(rt.closers, func() { conn.Close() })

	if err := mq.SetupTopology(ctx, conn); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}

	qop := operator.NewQueueOperator(operator.Config{
		Publisher: mq.NewPublisher(conn, rt.Logger),
		Timeout:   cfg.OperatorTimeout,
		Logger:    rt.Logger,
	})

	consumerCtx, cancel := context.WithCancel(context.Background())
	consumer := mq.NewConsumer(conn, rt.Logger, mq.ConsumerConfig{
		Queue:   qop.ReplyQueue(),
		Handler: qop.HandleReply,
		Declare: mq.DeclareReplyQueue(qop.ReplyQueue()),
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			rt.Logger.Error("reply consumer error", "queue", qop.ReplyQueue(), "error", err)
		}
	}()
	// Consumer закрываем раньше соединения
	rt.closers = append([]func(){func() {
		cancel()
		<-done
	}}, rt.closers...)

	rt.Operators[operator.Name] = executor.NewOperator(operator.Name, qop, binary)
	rt.Logger.Info("step operator configured", "operator", operator.Name, "reply_queue", qop.ReplyQueue())
	return nil
}

// Close освобождает соединения Runtime.
func (rt *Runtime) Close() {
	for _, fn := range rt.closers {
		fn()
	}
	rt.closers = nil
}
