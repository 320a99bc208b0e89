// Package launcher запускает один шаг pipeline run.
//
// Launcher проводит шаг через состояния PREPARING → (CACHED | RUNNING) →
// (COMPLETED | FAILED): резервирует pipeline run, разрешает входы,
// считает cache key, ищет кэш, регистрирует step run, выполняет шаг
// через executor и публикует выходы и статусы.
//
// Файлы:
//   - launcher.go   — Launcher, Config, Launch
//   - inputs.go     — ResolveInputs
//   - entrypoint.go — RunEntrypoint для удалённого выполнения через step operator
//   - duration.go   — HumanDuration для логов
//   - errors.go     — ошибки пакета
package launcher
