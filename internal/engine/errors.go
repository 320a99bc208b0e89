package engine

import "errors"

// Ошибки валидации deployment.
var (
	// ErrMissingDependency — шаг зависит от несуществующего шага.
	ErrMissingDependency = errors.New("step depends on unknown step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrUnknownSource — реализация шага не зарегистрирована.
	ErrUnknownSource = errors.New("unknown step source")

	// ErrUnknownOperator — шаг ссылается на ненастроенный step operator.
	ErrUnknownOperator = errors.New("unknown step operator")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepName string // шаг, где произошла ошибка
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepName != "" {
		return "step " + e.StepName + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepName, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepName: stepName,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}
