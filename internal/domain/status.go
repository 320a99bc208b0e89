package domain

// ExecutionStatus — статус выполнения pipeline run или step run.
//
// Жизненный цикл step run:
//
//	RUNNING → COMPLETED
//	        ↘ FAILED
//	(или сразу) CACHED — результат взят из предыдущего step run
//
// Терминальный статус step run больше никогда не меняется.
type ExecutionStatus string

const (
	// StatusRunning — выполнение в процессе.
	StatusRunning ExecutionStatus = "RUNNING"

	// StatusCompleted — выполнение успешно завершено.
	StatusCompleted ExecutionStatus = "COMPLETED"

	// StatusFailed — выполнение завершилось с ошибкой.
	StatusFailed ExecutionStatus = "FAILED"

	// StatusCached — выполнение пропущено, outputs взяты из кэша.
	StatusCached ExecutionStatus = "CACHED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCached:
		return true
	default:
		return false
	}
}

// IsSuccessful возвращает true для успешных финальных статусов (COMPLETED, CACHED).
// Только такие step runs могут служить источником кэша.
func (s ExecutionStatus) IsSuccessful() bool {
	return s == StatusCompleted || s == StatusCached
}

// IsValid проверяет, что статус известен.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCached:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// ParseExecutionStatus парсит строку в ExecutionStatus.
// Возвращает false, если статус неизвестен.
func ParseExecutionStatus(s string) (ExecutionStatus, bool) {
	status := ExecutionStatus(s)
	return status, status.IsValid()
}
