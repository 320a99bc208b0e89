// Package worker выполняет шаги, отправленные step operator'ом "queue".
//
// # Обзор
//
// Worker — stateless компонент системы Conduit (процесс conduit-operator).
// Launcher публикует в steps.launch запрос с entrypoint шага и ждёт ответа
// в своей reply-очереди. Worker:
//
//   - Получает запрос из steps.launch
//   - Проверяет, что это "conduit step-entrypoint ...", и подставляет свой бинарник
//   - Запускает процесс с таймаутом
//   - Отвечает статусом COMPLETED или FAILED, кодом выхода и хвостом вывода
//
// Шаг не повторяется: повторы и кэш остаются на стороне launcher'а.
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди.
//
// # Файлы
//
//   - worker.go   — Worker, Config, Start/Stop
//   - handlers.go — обработка step.launch и ответ
//   - command.go  — CommandRunner и ExecRunner (os/exec)
//   - errors.go   — ошибки пакета
package worker
