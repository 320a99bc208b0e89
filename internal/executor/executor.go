package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Conduit/internal/domain"
)

// Ошибки executor.
var (
	// ErrStepOperatorNotFound — шаг требует step operator, который не настроен.
	ErrStepOperatorNotFound = errors.New("step operator not found")

	// ErrMissingOutput — шаг не вернул объявленный выход.
	ErrMissingOutput = errors.New("step did not produce declared output")
)

// Executor выполняет шаг. Ошибка означает неуспех шага, nil — успех.
//
// inputs и outputs — артефакты по именам входов и выходов шага. Выходы
// к моменту вызова уже имеют созданный URI, но ещё не зарегистрированы
// в store.
type Executor interface {
	Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error
}

// Kind — вариант выполнения шага.
type Kind string

const (
	// KindInProcess — шаг выполняется в процессе launcher.
	KindInProcess Kind = "in_process"

	// KindOperator — шаг передаётся step operator.
	KindOperator Kind = "operator"
)

// KindOf определяет вариант выполнения по конфигурации шага.
func KindOf(config domain.StepConfig) Kind {
	if config.StepOperator != "" {
		return KindOperator
	}
	return KindInProcess
}

// Selection — выбранный вариант выполнения для одного запуска.
type Selection struct {
	Kind     Kind
	Executor Executor

	// Operator — имя step operator для KindOperator.
	Operator string
}

// Select выбирает executor для шага один раз на запуск.
//
// Шаг без step_operator выполняется через inProcess. Для остальных
// имя должно совпадать с настроенным оператором, иначе ErrStepOperatorNotFound.
func Select(config domain.StepConfig, inProcess Executor, operators map[string]*Operator) (Selection, error) {
	switch KindOf(config) {
	case KindOperator:
		op, ok := operators[config.StepOperator]
		if !ok {
			return Selection{}, fmt.Errorf("%w: step %q requires %q",
				ErrStepOperatorNotFound, config.Name, config.StepOperator)
		}
		return Selection{Kind: KindOperator, Executor: op, Operator: config.StepOperator}, nil
	default:
		return Selection{Kind: KindInProcess, Executor: inProcess}, nil
	}
}
