package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр реализаций шагов по source.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными шагами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewDelayStep())
	r.Register(NewHTTPStep())
	r.Register(NewTransformStep())
	r.Register(NewFailStep())

	return r
}

// Register регистрирует шаг в реестре.
// Шаг с тем же source перезаписывается.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Source()] = step
}

// Get возвращает шаг по source.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(source string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[source]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, source)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли source.
func (r *Registry) Has(source string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[source]
	return exists
}

// Sources возвращает отсортированный список зарегистрированных source.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.steps))
	for s := range r.steps {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, source)
}
