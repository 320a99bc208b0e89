package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// SourceTransform — source шага трансформации.
	SourceTransform = "builtin.transform"

	// Ключ параметров.
	configMappings = "mappings"
)

// TransformStep — шаг трансформации данных.
//
// Объединяет JSON объекты всех входов (в порядке имён входов) и поверх
// записывает mappings. Mappings рендерятся executor'ом до вызова шага,
// поэтому могут ссылаться на входы через {{ .Inputs.name.field }}.
//
// Параметры:
//
//	mappings:
//	  total: "{{ len .Inputs.dataset.items }}"
//	  source: "{{ .Step }}"
//
// Каждый выход получает итоговый JSON объект:
//
//	{"items": [...], "total": 10, "source": "prepare"}
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Source возвращает source шага.
func (s *TransformStep) Source() string {
	return SourceTransform
}

// Execute выполняет трансформацию данных.
func (s *TransformStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]any)

	names := make([]string, 0, len(req.Inputs))
	for name := range req.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var obj map[string]any
		if err := json.Unmarshal(req.Inputs[name], &obj); err != nil {
			return nil, fmt.Errorf("%w: %s: input %q is not a JSON object", ErrInvalidConfig, SourceTransform, name)
		}
		for key, val := range obj {
			result[key] = val
		}
	}

	for key, rendered := range s.parseMappings(req.Parameters) {
		result[key] = s.parseValue(rendered)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal transform result: %w", err)
	}
	return NewResponse(req.Outputs, data), nil
}

// parseMappings извлекает mappings из параметров.
func (s *TransformStep) parseMappings(config map[string]any) map[string]string {
	raw := config[configMappings]
	if raw == nil {
		return nil
	}

	switch m := raw.(type) {
	case map[string]string:
		return m

	case map[string]any:
		result := make(map[string]string, len(m))
		for key, val := range m {
			if str, ok := val.(string); ok {
				result[key] = str
			}
		}
		return result

	default:
		return nil
	}
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func (s *TransformStep) parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	return value
}
