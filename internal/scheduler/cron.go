package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей) с дескрипторами @hourly, @every 10m.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule разбирает cron-выражение.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	return schedule, nil
}

// NextDue вычисляет следующее время запуска после from в часовом поясе loc.
// Результат в UTC.
func NextDue(schedule cron.Schedule, from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return schedule.Next(from.In(loc)).UTC()
}

// OrchestratorRunID формирует orchestrator run id для тика.
//
// Один и тот же тик всегда даёт один id, поэтому перезапуск scheduler
// продолжает run тика, а не создаёт новый.
func OrchestratorRunID(pipelineName string, due time.Time) string {
	return fmt.Sprintf("%s_%d", pipelineName, due.Unix())
}
