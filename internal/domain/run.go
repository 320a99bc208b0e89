package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineRun — один экземпляр выполнения pipeline.
//
// PipelineRun создаётся (или переиспользуется) при запуске первого шага run.
// ID детерминированно вычисляется из orchestrator run id, поэтому
// независимые процессы оркестратора получают один и тот же run без
// координации между собой.
//
// Статус пересчитывается после каждого запуска шага. Run никогда не удаляется.
type PipelineRun struct {
	// ID — идентификатор run (UUIDv5 от orchestrator run id).
	ID uuid.UUID `json:"id"`

	// Name — имя run, отрендеренное из шаблона с датой и временем.
	Name string `json:"name"`

	// OrchestratorRunID — идентификатор run на стороне оркестратора.
	OrchestratorRunID string `json:"orchestrator_run_id"`

	// UserID — владелец run.
	UserID uuid.UUID `json:"user_id"`

	// ProjectID — проект (workspace), которому принадлежит run.
	ProjectID uuid.UUID `json:"project_id"`

	// StackID — стек, на котором выполняется pipeline.
	StackID uuid.UUID `json:"stack_id"`

	// PipelineID — ссылка на pipeline. Может быть Nil для unlisted runs.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// EnableCache — разрешено ли кэширование на уровне run.
	EnableCache bool `json:"enable_cache"`

	// NumSteps — заявленное количество шагов в pipeline.
	NumSteps int `json:"num_steps"`

	// Status — агрегированный статус run.
	Status ExecutionStatus `json:"status"`

	// PipelineConfiguration — снимок конфигурации pipeline на момент создания.
	PipelineConfiguration map[string]any `json:"pipeline_configuration,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *PipelineRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkFailed переводит run в статус FAILED.
func (r *PipelineRun) MarkFailed() {
	r.Status = StatusFailed
	r.UpdatedAt = time.Now()
}

// Apply применяет update к run.
func (r *PipelineRun) Apply(update PipelineRunUpdate) {
	if update.Status != nil {
		r.Status = *update.Status
	}
	r.UpdatedAt = time.Now()
}

// PipelineRunUpdate — частичное обновление pipeline run.
type PipelineRunUpdate struct {
	Status *ExecutionStatus `json:"status,omitempty"`
}

// PipelineRunFilter — параметры фильтрации pipeline runs.
type PipelineRunFilter struct {
	ProjectID  uuid.UUID
	PipelineID uuid.UUID
	Status     ExecutionStatus
	Limit      int
	Offset     int
}
