// Package executor содержит варианты выполнения шага.
//
// Executor — общий интерфейс. Select один раз на запуск выбирает вариант:
//   - InProcess — шаг выполняется в процессе через steps.Registry;
//   - Operator — команда step-entrypoint передаётся StepOperator
//     (например, operator.QueueOperator поверх RabbitMQ).
//
// Файлы:
//   - executor.go  — Executor, Kind, Select, ошибки
//   - inprocess.go — InProcess
//   - operator.go  — Operator, StepOperator, EntrypointCommand
package executor
