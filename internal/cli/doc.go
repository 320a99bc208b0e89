// Package cli реализует команды conduit.
//
// # Обзор
//
// CLI — точка входа оркестраторов и пользователей:
//   - launch: запуск одного шага (оркестратор вызывает его для каждого шага)
//   - run: локальный запуск всего pipeline через orchestrator.Local
//   - runs, steps: просмотр pipeline runs, step runs и артефактов
//   - schedule: запуск pipeline по cron-расписанию (internal/scheduler)
//   - step-entrypoint: служебная команда, которую выполняет step operator
//
// # Ключевые компоненты
//
// ## Runtime
//
// Зависимости команд: metadata store (store.Client), artifact store,
// registry шагов, in-process executor и step operators. Собирается из
// config.Config лениво, после парсинга флагов:
//
//	rt, err := cli.NewRuntime(ctx, cfg, logger)
//	defer rt.Close()
//
// Если задан RABBITMQ_URL, Runtime подключает step operator "queue".
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conduit runs list --json | jq .
//
// ## Commands
//
// Каждая команда создаётся фабричной функцией (NewLaunchCmd, NewRunCmd и т.д.),
// принимающей runtimeFn и outputFn — замыкания для ленивого создания
// Runtime и Output после парсинга PersistentFlags.
package cli
