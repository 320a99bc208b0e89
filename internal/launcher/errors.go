package launcher

import "errors"

// Ошибки launcher.
var (
	// ErrInputResolution — вход или upstream шаг не найден среди step runs текущего run.
	// Означает нарушение порядка запуска или ошибку в графе pipeline.
	ErrInputResolution = errors.New("input resolution failed")

	// ErrUnknownStep — шага нет в deployment.
	ErrUnknownStep = errors.New("step not found in deployment")
)
