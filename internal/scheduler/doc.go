// Package scheduler запускает pipeline по cron-расписанию.
//
// Каждый тик вызывает PipelineRunner (обычно orchestrator.Local) с
// orchestrator run id "<pipeline>_<unix времени тика>". Поэтому повторный
// запуск того же тика попадает в уже созданный pipeline run и продолжает
// его, а не дублирует.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Start)
//   - cron.go      — парсинг cron-выражений и вычисление следующего тика
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Runner:     orch,
//	    Deployment: d,
//	    Cron:       "0 3 * * *",
//	    Logger:     logger,
//	})
//	err = sched.Start(ctx) // блокируется до отмены ctx
//
// Leader election не выполняется: один процесс на расписание.
package scheduler
