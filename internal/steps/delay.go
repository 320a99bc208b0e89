package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SourceDelay — source шага задержки.
	SourceDelay = "builtin.delay"

	// Ключи параметров delay.
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"
)

// DelayStep — шаг задержки.
//
// Приостанавливает выполнение на указанное время.
// Поддерживает graceful shutdown через context cancellation.
//
// Параметры:
//
//	duration_sec: 10     # задержка в секундах
//	# или
//	duration_ms: 5000    # задержка в миллисекундах
//
// Каждый выход получает {"duration_ms": N}.
type DelayStep struct{}

// NewDelayStep создаёт новый DelayStep.
func NewDelayStep() *DelayStep {
	return &DelayStep{}
}

// Source возвращает source шага.
func (s *DelayStep) Source() string {
	return SourceDelay
}

// Execute выполняет задержку.
func (s *DelayStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	duration, err := s.parseDuration(req.Parameters)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		data, err := json.Marshal(map[string]any{"duration_ms": duration.Milliseconds()})
		if err != nil {
			return nil, err
		}
		return NewResponse(req.Outputs, data), nil
	}
}

// parseDuration извлекает длительность из параметров.
func (s *DelayStep) parseDuration(config map[string]any) (time.Duration, error) {
	if sec := GetConfigInt(config, configDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if ms := GetConfigInt(config, configDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidConfig, SourceDelay)
}
