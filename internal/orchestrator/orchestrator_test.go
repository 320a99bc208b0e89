package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/api"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/launcher"
	"github.com/shaiso/Conduit/internal/repo"
	"github.com/shaiso/Conduit/internal/steps"
	"github.com/shaiso/Conduit/internal/store"
)

// recordingExecutor запоминает порядок выполнения шагов.
type recordingExecutor struct {
	inner executor.Executor

	mu    sync.Mutex
	order []string
}

func (r *recordingExecutor) Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error {
	r.mu.Lock()
	r.order = append(r.order, info.Config.Name)
	r.mu.Unlock()
	return r.inner.Run(ctx, inputs, outputs, info)
}

// gatedExecutor держит шаг wait, пока не стартует шаг after.
type gatedExecutor struct {
	inner executor.Executor
	wait  string
	after string

	once    sync.Once
	started chan struct{}
}

func (g *gatedExecutor) Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error {
	switch info.Config.Name {
	case g.after:
		g.once.Do(func() { close(g.started) })
	case g.wait:
		<-g.started
	}
	return g.inner.Run(ctx, inputs, outputs, info)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocal(t *testing.T, parallelism int) (*Local, *recordingExecutor, store.Store) {
	t.Helper()
	artifactStore, err := artifacts.NewLocalStore("", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	registry := steps.DefaultRegistry()
	rec := &recordingExecutor{inner: executor.NewInProcess(registry, artifactStore, discardLogger())}
	s := store.NewLocal(repo.NewMemorySet())

	return New(Config{
		Store:       s,
		Artifacts:   artifactStore,
		InProcess:   rec,
		Sources:     registry,
		Identity:    launcher.Identity{UserID: uuid.New(), ProjectID: uuid.New()},
		Parallelism: parallelism,
		Logger:      discardLogger(),
	}), rec, s
}

func transformStep(name string, inputs map[string]domain.InputSpec, outputs ...string) domain.Step {
	s := domain.Step{
		Config: domain.StepConfig{
			Name:       name,
			Source:     steps.SourceTransform,
			Parameters: map[string]any{"mappings": map[string]any{name: "done"}},
			Outputs:    map[string]domain.OutputConfig{},
		},
		Spec: domain.StepSpec{Inputs: inputs},
	}
	for _, out := range outputs {
		s.Config.Outputs[out] = domain.OutputConfig{}
	}
	return s
}

// diamond: extract → (clean, stats) → report
func diamond() *domain.Deployment {
	return &domain.Deployment{
		Pipeline:       domain.PipelineConfig{ID: uuid.New(), Name: "etl", EnableCache: true},
		OrchestratorID: uuid.New(),
		Steps: map[string]domain.Step{
			"extract": transformStep("extract", nil, "rows"),
			"clean":   transformStep("clean", map[string]domain.InputSpec{"rows": {StepName: "extract", OutputName: "rows"}}, "rows"),
			"stats":   transformStep("stats", map[string]domain.InputSpec{"rows": {StepName: "extract", OutputName: "rows"}}, "summary"),
			"report": transformStep("report", map[string]domain.InputSpec{
				"rows":    {StepName: "clean", OutputName: "rows"},
				"summary": {StepName: "stats", OutputName: "summary"},
			}, "html"),
		},
	}
}

func TestLocal_RunSequential(t *testing.T) {
	o, rec, _ := newLocal(t, 1)
	d := diamond()

	run, err := o.Run(context.Background(), d, "r1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	want := []string{"extract", "clean", "stats", "report"}
	if len(rec.order) != len(want) {
		t.Fatalf("executed = %v, want %v", rec.order, want)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Errorf("executed = %v, want %v", rec.order, want)
			break
		}
	}
}

func TestLocal_RunParallel(t *testing.T) {
	o, rec, s := newLocal(t, 3)
	d := diamond()

	run, err := o.Run(context.Background(), d, "r1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	if len(rec.order) != 4 || rec.order[0] != "extract" || rec.order[3] != "report" {
		t.Errorf("executed = %v", rec.order)
	}

	registered, err := s.ListRunSteps(context.Background(), domain.StepRunFilter{RunID: run.ID})
	if err != nil {
		t.Fatalf("ListRunSteps: %v", err)
	}
	if len(registered) != 4 {
		t.Errorf("step runs = %d, want 4", len(registered))
	}
}

func TestLocal_SecondRunIsCached(t *testing.T) {
	o, rec, _ := newLocal(t, 1)
	d := diamond()
	ctx := context.Background()

	if _, err := o.Run(ctx, d, "r1"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	run, err := o.Run(ctx, d, "r2")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if run.Status != domain.StatusCached {
		t.Errorf("status = %s, want CACHED", run.Status)
	}
	if len(rec.order) != 4 {
		t.Errorf("executions = %d, want 4", len(rec.order))
	}
}

func TestLocal_ResumeSkipsFinishedSteps(t *testing.T) {
	o, rec, _ := newLocal(t, 1)
	d := diamond()
	d.Pipeline.EnableCache = false
	ctx := context.Background()

	if _, err := o.Run(ctx, d, "r1"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	run, err := o.Run(ctx, d, "r1")
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}

	if run.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	if len(rec.order) != 4 {
		t.Errorf("executions = %d, want 4", len(rec.order))
	}
}

func TestLocal_StopsAtFirstFailure(t *testing.T) {
	for _, parallelism := range []int{1, 2} {
		o, rec, s := newLocal(t, parallelism)
		d := diamond()
		clean := d.Steps["clean"]
		clean.Config.Source = steps.SourceFail
		d.Steps["clean"] = clean

		run, err := o.Run(context.Background(), d, "r1")
		if !errors.Is(err, steps.ErrStepFailed) {
			t.Fatalf("parallelism %d: err = %v, want ErrStepFailed", parallelism, err)
		}
		if run == nil || run.Status != domain.StatusFailed {
			t.Fatalf("parallelism %d: run = %+v, want FAILED", parallelism, run)
		}

		for _, name := range rec.order {
			if name == "report" {
				t.Errorf("parallelism %d: report executed after failure", parallelism)
			}
		}

		reports, err := s.ListRunSteps(context.Background(), domain.StepRunFilter{RunID: run.ID, Name: "report"})
		if err != nil {
			t.Fatalf("ListRunSteps: %v", err)
		}
		if len(reports) != 0 {
			t.Errorf("parallelism %d: report registered after failure", parallelism)
		}
	}
}

func TestLocal_FailureMarksSiblingsFailed(t *testing.T) {
	h := api.NewHandler(api.Config{Store: store.NewLocal(repo.NewMemorySet()), Logger: discardLogger()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	project := uuid.New()
	client := store.NewClient(store.ClientConfig{BaseURL: srv.URL, ProjectID: project})

	artifactStore, err := artifacts.NewLocalStore("", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	registry := steps.DefaultRegistry()
	gated := &gatedExecutor{
		inner:   executor.NewInProcess(registry, artifactStore, discardLogger()),
		wait:    "boom",
		after:   "slow",
		started: make(chan struct{}),
	}

	o := New(Config{
		Store:       client,
		Artifacts:   artifactStore,
		InProcess:   gated,
		Sources:     registry,
		Identity:    launcher.Identity{UserID: uuid.New(), ProjectID: project},
		Parallelism: 2,
		Logger:      discardLogger(),
	})

	d := &domain.Deployment{
		Pipeline:       domain.PipelineConfig{ID: uuid.New(), Name: "siblings"},
		OrchestratorID: uuid.New(),
		Steps: map[string]domain.Step{
			"boom": {Config: domain.StepConfig{
				Name:    "boom",
				Source:  steps.SourceFail,
				Outputs: map[string]domain.OutputConfig{"out": {}},
			}},
			"slow": {Config: domain.StepConfig{
				Name:       "slow",
				Source:     steps.SourceDelay,
				Parameters: map[string]any{"duration_sec": 2},
				Outputs:    map[string]domain.OutputConfig{"out": {}},
			}},
		},
	}

	run, err := o.Run(context.Background(), d, "r1")
	if !errors.Is(err, steps.ErrStepFailed) {
		t.Fatalf("err = %v, want ErrStepFailed", err)
	}
	if run == nil || run.Status != domain.StatusFailed {
		t.Fatalf("run = %+v, want FAILED", run)
	}

	registered, err := client.ListRunSteps(context.Background(), domain.StepRunFilter{RunID: run.ID})
	if err != nil {
		t.Fatalf("ListRunSteps: %v", err)
	}
	if len(registered) != 2 {
		t.Fatalf("step runs = %d, want 2", len(registered))
	}
	for _, step := range registered {
		if step.Status != domain.StatusFailed || step.EndTime == nil {
			t.Errorf("%s = %s (end %v), want FAILED with end time", step.Name, step.Status, step.EndTime)
		}
	}
}

func TestLocal_InvalidDeployment(t *testing.T) {
	o, rec, _ := newLocal(t, 1)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(d *domain.Deployment)
	}{
		{"unknown source", func(d *domain.Deployment) {
			s := d.Steps["extract"]
			s.Config.Source = "custom.missing"
			d.Steps["extract"] = s
		}},
		{"unknown operator", func(d *domain.Deployment) {
			s := d.Steps["report"]
			s.Config.StepOperator = "sagemaker"
			d.Steps["report"] = s
		}},
		{"cycle", func(d *domain.Deployment) {
			s := d.Steps["extract"]
			s.Spec.UpstreamSteps = []string{"report"}
			d.Steps["extract"] = s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diamond()
			tt.modify(d)
			if _, err := o.Run(ctx, d, "r1"); !errors.Is(err, ErrInvalidDeployment) {
				t.Errorf("err = %v, want ErrInvalidDeployment", err)
			}
		})
	}

	if len(rec.order) != 0 {
		t.Errorf("executed %v for invalid deployments", rec.order)
	}
	if _, err := o.Run(ctx, diamond(), ""); !errors.Is(err, ErrRunIDRequired) {
		t.Errorf("err = %v, want ErrRunIDRequired", err)
	}
}
