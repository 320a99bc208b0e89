// Package telemetry — логирование и метрики процессов Conduit.
//
// Файлы:
//   - logging.go — slog логгер (LOG_LEVEL, LOG_FORMAT), логгер в context,
//     атрибуты run_id и step для логов launcher'а
//   - metrics.go — Prometheus метрики: запуски шагов и попадания в кэш,
//     длительность шагов, запросы к API, задания operator'а,
//     состояние соединений RabbitMQ и исходы доставок
//
// Метрики регистрируются при импорте пакета. conduit-server и
// conduit-operator отдают их на /metrics.
package telemetry
