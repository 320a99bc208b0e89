// Package steps содержит встроенные реализации шагов, выполняемые в процессе.
//
// # Интерфейс Step
//
//	type Step interface {
//	    Source() string
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит имя шага, отрендеренные параметры, содержимое входных
// артефактов и имена выходов. Response — содержимое каждого выхода.
// Чтение и запись артефактов выполняет executor.InProcess.
//
// # Registry
//
// Registry хранит реализации по StepConfig.Source:
//
//	registry := steps.DefaultRegistry()
//	step, err := registry.Get("builtin.http")
//
// # Встроенные шаги
//
//   - builtin.http      — HTTP запрос, тело ответа пишется в каждый выход
//   - builtin.delay     — пауза с поддержкой отмены
//   - builtin.transform — слияние JSON входов и mappings
//   - builtin.fail      — всегда падает
//
// # Файлы пакета
//
//   - step.go      — интерфейс Step, Request, Response, ошибки, helpers
//   - registry.go  — Registry
//   - http.go      — HTTPStep
//   - delay.go     — DelayStep
//   - transform.go — TransformStep
//   - fail.go      — FailStep
package steps
