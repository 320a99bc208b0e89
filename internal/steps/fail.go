package steps

import (
	"context"
	"fmt"
)

// SourceFail — source шага, который всегда падает.
const SourceFail = "builtin.fail"

// FailStep всегда возвращает ErrStepFailed. Используется для проверки
// обработки ошибок pipeline.
//
// Параметры:
//
//	message: "boom"   # текст ошибки
type FailStep struct{}

// NewFailStep создаёт новый FailStep.
func NewFailStep() *FailStep {
	return &FailStep{}
}

// Source возвращает source шага.
func (s *FailStep) Source() string {
	return SourceFail
}

// Execute возвращает ошибку.
func (s *FailStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	message := GetConfigString(req.Parameters, "message")
	if message == "" {
		message = "step " + req.StepName + " failed on purpose"
	}
	return nil, fmt.Errorf("%w: %s", ErrStepFailed, message)
}
