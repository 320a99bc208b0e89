// Conduit Operator — исполнитель step operator "queue".
//
// Operator:
//   - Получает запросы из очереди steps.launch
//   - Выполняет "conduit step-entrypoint" отдельным процессом
//   - Отвечает launcher'у в его reply-очередь
//
// Operators масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/telemetry"
	"github.com/shaiso/Conduit/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting conduit-operator")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Пустой RABBITMQ_URL — брокер из docker-compose (mq.DefaultURL)
	mqConn, err := mq.NewConnection(cfg.MQConnection(mq.ConnectionOperator, logger))
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		Conn:      mqConn,
		Publisher: mq.NewPublisher(mqConn, logger),
		Timeout:   cfg.OperatorTimeout,
		Logger:    logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.WorkerPort

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("conduit-operator stopped")
}
