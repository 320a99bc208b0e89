package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInvalidDeployment — deployment не прошёл проверку перед запуском.
	ErrInvalidDeployment = errors.New("invalid deployment")

	// ErrRunIDRequired — не задан orchestrator run id.
	ErrRunIDRequired = errors.New("orchestrator run id is required")
)
