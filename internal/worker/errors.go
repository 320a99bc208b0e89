package worker

import "errors"

// Ошибки воркера.
var (
	// ErrInvalidEntrypoint — команда в запросе не является entrypoint шага.
	ErrInvalidEntrypoint = errors.New("invalid step entrypoint")

	// ErrExecutionTimeout — выполнение entrypoint превысило таймаут.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
