package steps

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — source шага не найден в реестре.
	ErrStepNotFound = errors.New("step source not found")

	// ErrInvalidConfig — невалидные параметры шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrStepFailed — шаг завершился с ошибкой по своей логике.
	ErrStepFailed = errors.New("step failed")
)

// Step — реализация шага, выполняемая в процессе.
//
// Шаг получает содержимое входных артефактов и параметры, возвращает
// содержимое каждого объявленного выхода. Чтение и запись артефактов
// делает executor, шаг с artifact store не работает.
type Step interface {
	// Source возвращает идентификатор реализации (StepConfig.Source).
	Source() string

	// Execute выполняет шаг.
	// Шаг должен проверять ctx.Done() для graceful shutdown.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// StepName — имя шага в pipeline.
	StepName string

	// Parameters — параметры шага (уже отрендеренные через engine.RenderConfig).
	Parameters map[string]any

	// Inputs — содержимое входных артефактов (input name → bytes).
	Inputs map[string][]byte

	// Outputs — имена объявленных выходов в отсортированном порядке.
	Outputs []string
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — содержимое выходов (output name → bytes).
	Outputs map[string][]byte
}

// NewResponse создаёт Response с одинаковым содержимым для всех выходов.
func NewResponse(outputs []string, data []byte) *Response {
	resp := &Response{Outputs: make(map[string][]byte, len(outputs))}
	for _, name := range outputs {
		resp.Outputs[name] = data
	}
	return resp
}

// checkContext возвращает ErrStepCancelled, если контекст уже отменён.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
		return nil
	}
}

// GetConfigString извлекает строковое значение из параметров.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из параметров.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из параметров.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMapString извлекает map[string]string из параметров.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}
