package cache

import (
	"context"
	"fmt"

	"github.com/shaiso/Conduit/internal/domain"
)

// StepRunLister — часть metadata store, нужная для поиска в кэше.
type StepRunLister interface {
	ListRunSteps(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error)
}

// GetCachedStepRun возвращает самый свежий успешный step run с тем же cache key.
//
// Кандидаты — step runs в статусе COMPLETED или CACHED. При нескольких
// кандидатах побеждает последний завершившийся (затем start_time, затем ID).
// Возвращает nil, nil, если подходящего step run нет.
func GetCachedStepRun(ctx context.Context, lister StepRunLister, key string) (*domain.StepRun, error) {
	if key == "" {
		return nil, nil
	}

	candidates, err := lister.ListRunSteps(ctx, domain.StepRunFilter{
		CacheKey: key,
		Statuses: []domain.ExecutionStatus{domain.StatusCompleted, domain.StatusCached},
	})
	if err != nil {
		return nil, fmt.Errorf("list step runs by cache key: %w", err)
	}

	// Store может вернуть лишнее (например, старый сервер без фильтра по статусу)
	filtered := candidates[:0]
	for _, c := range candidates {
		if c.CacheKey == key && c.Status.IsSuccessful() {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	domain.SortNewestFirst(filtered)
	hit := filtered[0]
	return &hit, nil
}
