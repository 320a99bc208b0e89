// Package orchestrator запускает pipeline целиком.
//
// Local отвечает за:
//   - Проверку deployment (sources, step operators, циклы)
//   - Порядок запуска шагов по DAG
//   - Остановку на первой ошибке
//   - Продолжение прерванного run с тем же orchestrator run id
//
// Сам запуск шага (кэш, регистрация, выполнение, статусы) делает launcher.
package orchestrator
