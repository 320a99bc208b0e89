package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shaiso/Conduit/internal/mq"
)

// Default configuration values.
const (
	defaultPrefetch = 1
	defaultTimeout  = 2 * time.Hour
)

// Replier отправляет результат выполнения в reply-очередь.
type Replier interface {
	Reply(ctx context.Context, replyTo, correlationID string, payload mq.StepResultPayload) error
}

// Worker выполняет entrypoint шагов, присланные step operator'ом "queue".
//
// Worker — stateless компонент системы, который:
//   - Получает запросы из очереди steps.launch
//   - Запускает "<binary> step-entrypoint ..." отдельным процессом
//   - Отвечает в reply-очередь launcher'а статусом и хвостом вывода
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	conn      *mq.Connection
	publisher Replier
	runner    CommandRunner

	binary   string
	env      []string
	timeout  time.Duration
	prefetch int

	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// MQ
	Conn      *mq.Connection
	Publisher Replier

	// Runner (опционально; если nil — ExecRunner)
	Runner CommandRunner

	// Binary — исполняемый файл conduit. Подставляется вместо первого
	// элемента entrypoint. Пусто — текущий исполняемый файл.
	Binary string

	// Env — окружение процесса шага. Nil — окружение воркера.
	Env []string

	// Timeout — максимальное время выполнения одного шага (default: 2h).
	Timeout time.Duration

	// Prefetch — сколько шагов выполнять одновременно (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	binary := cfg.Binary
	if binary == "" {
		if exe, err := os.Executable(); err == nil {
			binary = exe
		} else {
			binary = "conduit"
		}
	}

	env := cfg.Env
	if env == nil {
		env = os.Environ()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Worker{
		conn:      cfg.Conn,
		publisher: cfg.Publisher,
		runner:    runner,
		binary:    binary,
		env:       env,
		timeout:   timeout,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает consumer для steps.launch.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"binary", w.binary,
		"timeout", w.timeout,
		"prefetch", w.prefetch,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueStepsLaunch),
		Handler:  w.handleStepLaunch,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("step consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения consumer.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
