package domain

import (
	"time"

	"github.com/google/uuid"
)

// Artifact — именованный выход шага, расположенный по URI в artifact store.
//
// URI детерминирован: <root>/<step_name>/<output_name>/<step_run_id>.
// Артефакт принадлежит step run, который его создал; другие step runs
// ссылаются на него через InputArtifacts.
type Artifact struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	URI          string    `json:"uri"`
	Materializer string    `json:"materializer,omitempty"`
	DataType     string    `json:"data_type,omitempty"`
	ParentStepID uuid.UUID `json:"parent_step_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// ArtifactFilter — параметры фильтрации артефактов.
type ArtifactFilter struct {
	ParentStepID uuid.UUID
	URI          string
}

// Matches проверяет, подходит ли артефакт под фильтр.
func (f ArtifactFilter) Matches(a *Artifact) bool {
	if f.ParentStepID != uuid.Nil && a.ParentStepID != f.ParentStepID {
		return false
	}
	if f.URI != "" && a.URI != f.URI {
		return false
	}
	return true
}
