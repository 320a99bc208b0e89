package engine

import (
	"fmt"

	"github.com/shaiso/Conduit/internal/domain"
)

// SourceSet — набор зарегистрированных реализаций шагов.
// steps.Registry удовлетворяет этому интерфейсу.
type SourceSet interface {
	Has(source string) bool
}

// Validate выполняет полную валидацию deployment перед запуском.
//
// Проверяет:
// - Структуру deployment (domain.Deployment.Validate)
// - Что source каждого шага зарегистрирован
// - Что step operator каждого шага настроен
// - Отсутствие циклов (делегируется DAG)
//
// Возвращает DAG, чтобы вызывающий не строил его повторно.
func Validate(d *domain.Deployment, sources SourceSet, operators []string) (*DAG, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	configured := make(map[string]bool, len(operators))
	for _, name := range operators {
		configured[name] = true
	}

	for _, name := range sortedNames(d.Steps) {
		config := d.Steps[name].Config

		if sources != nil && !sources.Has(config.Source) {
			return nil, NewValidationError(name, "source",
				fmt.Sprintf("source %q is not registered", config.Source), ErrUnknownSource)
		}
		if config.StepOperator != "" && !configured[config.StepOperator] {
			return nil, NewValidationError(name, "step_operator",
				fmt.Sprintf("step operator %q is not configured", config.StepOperator), ErrUnknownOperator)
		}
	}

	return BuildDAG(d)
}
