// Package api содержит HTTP API metadata store.
//
// Структура:
//   - handler.go          — Handler с DI (store, token, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (recovery, metrics, logging, auth)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request)
//   - run_handler.go      — обработчики для /runs
//   - step_handler.go     — обработчики для /steps
//   - artifact_handler.go — обработчики для /artifacts
//
// API предоставляет REST endpoints для pipeline runs, step runs и артефактов.
// Ответы: {"data": ...}, {"data": [...], "total": N} или {"error": {"code", "message"}}.
package api
