package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// entrypointCommand — подкоманда, которую worker соглашается выполнять.
const entrypointCommand = "step-entrypoint"

// handleStepLaunch обрабатывает запрос из steps.launch.
//
// Ошибка шага не ошибка обработки: сообщение подтверждается, а launcher
// получает FAILED в ответе. Ошибка возвращается только если ответ не
// удалось отправить, тогда сообщение уходит на повторную доставку.
func (w *Worker) handleStepLaunch(ctx context.Context, delivery *mq.Delivery) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	payload, err := mq.ParsePayload[mq.StepLaunchPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse step.launch payload", "error", err)
		return w.reply(ctx, delivery, mq.StepResultPayload{
			Status:   mq.ResultFailed,
			ExitCode: -1,
			Error:    err.Error(),
		})
	}

	result := w.execute(ctx, payload)
	telemetry.OperatorJobs.WithLabelValues(result.Status).Inc()

	return w.reply(ctx, delivery, result)
}

// execute выполняет entrypoint и собирает результат.
func (w *Worker) execute(ctx context.Context, payload mq.StepLaunchPayload) mq.StepResultPayload {
	logger := w.logger.With(
		"step", payload.StepName,
		"step_run_id", payload.StepRunID,
		"run_id", payload.RunID,
	)

	result := mq.StepResultPayload{StepRunID: payload.StepRunID}

	args, err := w.command(payload.Entrypoint)
	if err != nil {
		logger.Warn("rejected step launch", "entrypoint", payload.Entrypoint, "error", err)
		result.Status = mq.ResultFailed
		result.ExitCode = -1
		result.Error = err.Error()
		return result
	}

	logger.Info("step entrypoint started", "run", payload.RunName)
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	output, exitCode, err := w.runner.Run(execCtx, args, w.env)
	result.Output = output
	result.ExitCode = exitCode

	if err != nil {
		result.Status = mq.ResultFailed
		result.Error = err.Error()
		logger.Warn("step entrypoint failed",
			"exit_code", exitCode,
			"duration", time.Since(start),
			"error", err,
		)
		return result
	}

	result.Status = mq.ResultCompleted
	logger.Info("step entrypoint finished", "duration", time.Since(start))
	return result
}

// command проверяет entrypoint и подставляет локальный бинарник.
// Worker выполняет только step-entrypoint, а не произвольные команды из очереди.
func (w *Worker) command(entrypoint []string) ([]string, error) {
	if len(entrypoint) < 2 || entrypoint[1] != entrypointCommand {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntrypoint, entrypoint)
	}
	args := make([]string, len(entrypoint))
	copy(args, entrypoint)
	args[0] = w.binary
	return args, nil
}

// reply отправляет результат, если отправитель ждёт ответа.
func (w *Worker) reply(ctx context.Context, delivery *mq.Delivery, result mq.StepResultPayload) error {
	replyTo := delivery.ReplyTo()
	if replyTo == "" {
		w.logger.Debug("step launch without reply queue", "step_run_id", result.StepRunID)
		return nil
	}
	if err := w.publisher.Reply(ctx, replyTo, delivery.CorrelationID(), result); err != nil {
		return fmt.Errorf("reply to %s: %w", replyTo, err)
	}
	return nil
}
