package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// StepOperator — внешний исполнитель шагов.
//
// Launch передаёт команду entrypoint на выполнение и возвращается,
// когда шаг завершён: nil — успех, ошибка — неуспех или сбой доставки.
type StepOperator interface {
	Launch(ctx context.Context, info domain.StepRunInfo, entrypoint []string) error
}

// Operator — вариант выполнения через step operator.
type Operator struct {
	name     string
	operator StepOperator
	binary   string
}

// NewOperator создаёт вариант выполнения для step operator name.
// binary — путь к conduit CLI на стороне оператора.
func NewOperator(name string, operator StepOperator, binary string) *Operator {
	if binary == "" {
		binary = "conduit"
	}
	return &Operator{name: name, operator: operator, binary: binary}
}

// Name возвращает имя step operator.
func (o *Operator) Name() string {
	return o.name
}

// Run строит команду entrypoint и передаёт её оператору.
// Входы и выходы entrypoint восстанавливает сам по step run из store.
func (o *Operator) Run(ctx context.Context, _, _ map[string]*domain.Artifact, info domain.StepRunInfo) error {
	return o.operator.Launch(ctx, info, EntrypointCommand(o.binary, info.Config.Name, info.StepRunID))
}

// EntrypointCommand строит команду запуска шага на стороне оператора.
func EntrypointCommand(binary, stepName string, stepRunID uuid.UUID) []string {
	return []string{
		binary,
		"step-entrypoint",
		"--step-name", stepName,
		"--step-run-id", stepRunID.String(),
	}
}
