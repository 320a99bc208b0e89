package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Ошибки валидации deployment.
var (
	// ErrInvalidDeployment — deployment не прошёл валидацию.
	ErrInvalidDeployment = errors.New("invalid deployment")
)

// Deployment — описание pipeline, подготовленное к запуску оркестратором.
//
// Deployment — это "что запускать": конфигурация pipeline, стек и шаги
// с их входами и выходами. Каждый процесс оркестратора получает один и тот же
// deployment и запускает свою часть шагов.
type Deployment struct {
	// RunName — шаблон имени run. Поддерживает {date} и {time}.
	RunName string `json:"run_name" yaml:"run_name"`

	// Pipeline — конфигурация pipeline.
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// StackID — стек, на котором выполняется pipeline.
	StackID uuid.UUID `json:"stack_id" yaml:"stack_id"`

	// OrchestratorID — идентификатор оркестратора.
	// Вместе с orchestrator run id определяет ID pipeline run.
	OrchestratorID uuid.UUID `json:"orchestrator_id" yaml:"orchestrator_id"`

	// Steps — шаги pipeline (имя шага → шаг).
	Steps map[string]Step `json:"steps" yaml:"steps"`
}

// PipelineConfig — конфигурация pipeline.
type PipelineConfig struct {
	ID          uuid.UUID      `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	EnableCache bool           `json:"enable_cache" yaml:"enable_cache"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Snapshot возвращает конфигурацию pipeline в виде map для сохранения в run.
func (c PipelineConfig) Snapshot() map[string]any {
	snapshot := map[string]any{
		"id":           c.ID.String(),
		"name":         c.Name,
		"enable_cache": c.EnableCache,
	}
	if len(c.Parameters) > 0 {
		snapshot["parameters"] = c.Parameters
	}
	return snapshot
}

// PipelineConfigFromSnapshot восстанавливает конфигурацию из снимка run.
func PipelineConfigFromSnapshot(snapshot map[string]any) (PipelineConfig, error) {
	var c PipelineConfig
	if len(snapshot) == 0 {
		return c, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return c, fmt.Errorf("encode pipeline snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode pipeline snapshot: %w", err)
	}
	return c, nil
}

// Step — шаг pipeline: конфигурация и объявление входов.
type Step struct {
	Config StepConfig `json:"config" yaml:"config"`
	Spec   StepSpec   `json:"spec" yaml:"spec"`
}

// StepConfig — конфигурация шага.
type StepConfig struct {
	// Name — логическое имя шага, уникальное внутри pipeline.
	Name string `json:"name" yaml:"name"`

	// Source — реализация шага (ключ в реестре, например "builtin.http").
	Source string `json:"source" yaml:"source"`

	// Parameters — параметры шага.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// EnableCache — разрешено ли кэширование шага. Nil — наследовать от pipeline.
	EnableCache *bool `json:"enable_cache,omitempty" yaml:"enable_cache,omitempty"`

	// StepOperator — имя step operator. Пусто — выполнять в процессе.
	StepOperator string `json:"step_operator,omitempty" yaml:"step_operator,omitempty"`

	// Outputs — объявленные выходы (имя выхода → конфигурация).
	Outputs map[string]OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// CachingParameters — дополнительные значения, влияющие на cache key.
	CachingParameters map[string]any `json:"caching_parameters,omitempty" yaml:"caching_parameters,omitempty"`
}

// CacheEnabled возвращает итоговый флаг кэширования шага.
func (c StepConfig) CacheEnabled() bool {
	if c.EnableCache == nil {
		return true
	}
	return *c.EnableCache
}

// OutputNames возвращает отсортированные имена выходов.
func (c StepConfig) OutputNames() []string {
	names := make([]string, 0, len(c.Outputs))
	for name := range c.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputConfig — конфигурация выхода шага.
type OutputConfig struct {
	Materializer string `json:"materializer,omitempty" yaml:"materializer,omitempty"`
	DataType     string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
}

// StepSpec — объявление входов и зависимостей шага.
type StepSpec struct {
	// Inputs — имя входа → выход upstream шага.
	Inputs map[string]InputSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// UpstreamSteps — имена шагов, от которых зависит шаг.
	UpstreamSteps []string `json:"upstream_steps,omitempty" yaml:"upstream_steps,omitempty"`
}

// InputSpec — ссылка на выход другого шага.
type InputSpec struct {
	StepName   string `json:"step_name" yaml:"step_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
}

// StepRunInfo — информация о выполняемом step run, передаётся исполнителю.
type StepRunInfo struct {
	Config    StepConfig     `json:"config"`
	Pipeline  PipelineConfig `json:"pipeline"`
	RunName   string         `json:"run_name"`
	RunID     uuid.UUID      `json:"run_id"`
	StepRunID uuid.UUID      `json:"step_run_id"`
}

// LoadDeployment читает deployment из YAML файла.
func LoadDeployment(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment: %w", err)
	}
	return ParseDeployment(data)
}

// ParseDeployment разбирает deployment из YAML и валидирует его.
func ParseDeployment(data []byte) (*Deployment, error) {
	var d Deployment
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeployment, err)
	}

	// Имя шага по умолчанию совпадает с ключом в map
	for name, step := range d.Steps {
		if step.Config.Name == "" {
			step.Config.Name = name
			d.Steps[name] = step
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate проверяет согласованность deployment.
//
// Проверяет:
// - Наличие шагов и source у каждого шага
// - Совпадение ключа шага и его имени
// - Что каждый вход ссылается на существующий шаг и объявленный выход
// - Что upstream шаги существуют
func (d *Deployment) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidDeployment)
	}

	for name, step := range d.Steps {
		if step.Config.Name != name {
			return fmt.Errorf("%w: step %q has config name %q", ErrInvalidDeployment, name, step.Config.Name)
		}
		if step.Config.Source == "" {
			return fmt.Errorf("%w: step %q has no source", ErrInvalidDeployment, name)
		}

		for inputName, input := range step.Spec.Inputs {
			producer, ok := d.Steps[input.StepName]
			if !ok {
				return fmt.Errorf("%w: step %q input %q references unknown step %q",
					ErrInvalidDeployment, name, inputName, input.StepName)
			}
			if _, ok := producer.Config.Outputs[input.OutputName]; !ok {
				return fmt.Errorf("%w: step %q input %q references unknown output %s.%s",
					ErrInvalidDeployment, name, inputName, input.StepName, input.OutputName)
			}
		}

		for _, upstream := range step.Spec.UpstreamSteps {
			if upstream == name {
				return fmt.Errorf("%w: step %q depends on itself", ErrInvalidDeployment, name)
			}
			if _, ok := d.Steps[upstream]; !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q", ErrInvalidDeployment, name, upstream)
			}
		}
	}

	return nil
}

// RenderRunName подставляет дату и время в шаблон имени run.
//
// {date} → 2006_01_02, {time} → 15_04_05_000000 (микросекунды).
// Пустой шаблон даёт "<pipeline>-{date}-{time}".
func (d *Deployment) RenderRunName(now time.Time) string {
	tmpl := d.RunName
	if tmpl == "" {
		tmpl = d.Pipeline.Name + "-{date}-{time}"
	}
	micros := now.Nanosecond() / int(time.Microsecond)
	r := strings.NewReplacer(
		"{date}", now.Format("2006_01_02"),
		"{time}", fmt.Sprintf("%s_%06d", now.Format("15_04_05"), micros),
	)
	return r.Replace(tmpl)
}

// NumSteps возвращает количество шагов в deployment.
func (d *Deployment) NumSteps() int {
	return len(d.Steps)
}
