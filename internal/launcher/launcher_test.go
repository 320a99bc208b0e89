package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/api"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/repo"
	"github.com/shaiso/Conduit/internal/steps"
	"github.com/shaiso/Conduit/internal/store"
)

// countingExecutor считает вызовы и делегирует in-process executor.
type countingExecutor struct {
	inner executor.Executor
	calls int
}

func (c *countingExecutor) Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error {
	c.calls++
	return c.inner.Run(ctx, inputs, outputs, info)
}

// collidingStore отвечает ErrArtifactExists на URI выбранного выхода.
type collidingStore struct {
	artifacts.Store
	output  string
	removed []string
}

func (c *collidingStore) MakeDirs(ctx context.Context, uri string) error {
	if strings.Contains(uri, "/"+c.output+"/") {
		return fmt.Errorf("%w: %s", artifacts.ErrArtifactExists, uri)
	}
	return c.Store.MakeDirs(ctx, uri)
}

func (c *collidingStore) RemoveAll(ctx context.Context, uri string) error {
	c.removed = append(c.removed, uri)
	return c.Store.RemoveAll(ctx, uri)
}

// cancellingExecutor отменяет запуск изнутри шага, как это делает SIGINT.
type cancellingExecutor struct {
	cancel context.CancelFunc
}

func (c *cancellingExecutor) Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error {
	c.cancel()
	return ctx.Err()
}

// flakyStore отказывает в регистрации артефакта на вызове failOn.
type flakyStore struct {
	store.Store
	failOn int
	calls  int
}

func (f *flakyStore) CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errors.New("connection reset")
	}
	return f.Store.CreateArtifact(ctx, artifact)
}

// newAPIClient поднимает API поверх памяти и возвращает HTTP клиента к нему.
func newAPIClient(t *testing.T) *store.Client {
	t.Helper()
	h := api.NewHandler(api.Config{
		Store:  store.NewLocal(repo.NewMemorySet()),
		Token:  "token",
		Logger: discardLogger(),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return store.NewClient(store.ClientConfig{
		BaseURL:   srv.URL,
		Token:     "token",
		ProjectID: projectID,
	})
}

// entrypointOperator выполняет entrypoint в том же процессе, как это делал бы удалённый worker.
type entrypointOperator struct {
	cfg     EntrypointConfig
	command []string
}

func (o *entrypointOperator) Launch(ctx context.Context, info domain.StepRunInfo, entrypoint []string) error {
	o.command = entrypoint
	cfg := o.cfg
	cfg.StepName = info.Config.Name
	cfg.StepRunID = info.StepRunID
	return RunEntrypoint(ctx, cfg)
}

type harness struct {
	store     store.Store
	artifacts artifacts.Store
	exec      *countingExecutor
	operators map[string]*executor.Operator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	local, err := artifacts.NewLocalStore("", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return &harness{
		store:     store.NewLocal(repo.NewMemorySet()),
		artifacts: local,
		exec:      &countingExecutor{inner: executor.NewInProcess(steps.DefaultRegistry(), local, discardLogger())},
	}
}

func (h *harness) launch(t *testing.T, d *domain.Deployment, step, orchestratorRunID string) error {
	t.Helper()
	l, err := New(Config{
		Store:             h.store,
		Artifacts:         h.artifacts,
		InProcess:         h.exec,
		Operators:         h.operators,
		Deployment:        d,
		StepName:          step,
		OrchestratorRunID: orchestratorRunID,
		Identity:          Identity{UserID: uuid.New(), ProjectID: projectID},
		Logger:            discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l.Launch(context.Background())
}

func (h *harness) stepRun(t *testing.T, d *domain.Deployment, orchestratorRunID, name string) domain.StepRun {
	t.Helper()
	runID := RunIDForOrchestratorRun(d.OrchestratorID, orchestratorRunID)
	found, err := h.store.ListRunSteps(context.Background(), domain.StepRunFilter{RunID: runID, Name: name})
	if err != nil {
		t.Fatalf("ListRunSteps: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("step runs for %q = %d, want 1", name, len(found))
	}
	return found[0]
}

func (h *harness) runStatus(t *testing.T, d *domain.Deployment, orchestratorRunID string) domain.ExecutionStatus {
	t.Helper()
	run, err := h.store.GetRun(context.Background(), RunIDForOrchestratorRun(d.OrchestratorID, orchestratorRunID))
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	return run.Status
}

var projectID = uuid.MustParse("5f0e4a1c-7a52-4f6c-9a1e-3c2b1d0e9f8a")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }

// trainingDeployment — load (без входов, выход data) → train (вход dataset из load.data).
func trainingDeployment() *domain.Deployment {
	return &domain.Deployment{
		RunName:        "training-{date}-{time}",
		Pipeline:       domain.PipelineConfig{ID: uuid.New(), Name: "training", EnableCache: true},
		StackID:        uuid.New(),
		OrchestratorID: uuid.New(),
		Steps: map[string]domain.Step{
			"load": {
				Config: domain.StepConfig{
					Name:       "load",
					Source:     steps.SourceTransform,
					Parameters: map[string]any{"mappings": map[string]any{"rows": "3"}},
					Outputs:    map[string]domain.OutputConfig{"data": {DataType: "json"}},
				},
			},
			"train": {
				Config: domain.StepConfig{
					Name:       "train",
					Source:     steps.SourceTransform,
					Parameters: map[string]any{"mappings": map[string]any{"trained_on": "{{ .Inputs.dataset.rows }}"}},
					Outputs:    map[string]domain.OutputConfig{"model": {}},
				},
				Spec: domain.StepSpec{
					Inputs:        map[string]domain.InputSpec{"dataset": {StepName: "load", OutputName: "data"}},
					UpstreamSteps: []string{"load"},
				},
			},
		},
	}
}

func singleStepDeployment(config domain.StepConfig) *domain.Deployment {
	return &domain.Deployment{
		Pipeline:       domain.PipelineConfig{ID: uuid.New(), Name: "single", EnableCache: true},
		OrchestratorID: uuid.New(),
		Steps:          map[string]domain.Step{config.Name: {Config: config}},
	}
}

func TestNew_UnknownStep(t *testing.T) {
	h := newHarness(t)
	_, err := New(Config{
		Store:             h.store,
		Artifacts:         h.artifacts,
		InProcess:         h.exec,
		Deployment:        trainingDeployment(),
		StepName:          "evaluate",
		OrchestratorRunID: "r1",
	})
	if !errors.Is(err, ErrUnknownStep) {
		t.Errorf("err = %v, want ErrUnknownStep", err)
	}
}

func TestRunIDForOrchestratorRun(t *testing.T) {
	orchestrator := uuid.New()

	a := RunIDForOrchestratorRun(orchestrator, "r1")
	if b := RunIDForOrchestratorRun(orchestrator, "r1"); a != b {
		t.Errorf("same orchestrator run id gave %s and %s", a, b)
	}
	if c := RunIDForOrchestratorRun(orchestrator, "r2"); a == c {
		t.Error("different orchestrator run ids gave equal run ids")
	}
	if d := RunIDForOrchestratorRun(uuid.New(), "r1"); a == d {
		t.Error("different orchestrators gave equal run ids")
	}
}

func TestLaunch_InputsAndParents(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()
	ctx := context.Background()

	if err := h.launch(t, d, "load", "r1"); err != nil {
		t.Fatalf("launch load: %v", err)
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusRunning {
		t.Errorf("run status after load = %s, want RUNNING", got)
	}

	if err := h.launch(t, d, "train", "r1"); err != nil {
		t.Fatalf("launch train: %v", err)
	}

	load := h.stepRun(t, d, "r1", "load")
	train := h.stepRun(t, d, "r1", "train")

	if load.Status != domain.StatusCompleted || train.Status != domain.StatusCompleted {
		t.Errorf("statuses = %s, %s, want COMPLETED", load.Status, train.Status)
	}
	if train.InputArtifacts["dataset"] != load.OutputArtifacts["data"] {
		t.Errorf("train input = %s, want load output %s", train.InputArtifacts["dataset"], load.OutputArtifacts["data"])
	}
	if len(train.ParentStepIDs) != 1 || train.ParentStepIDs[0] != load.ID {
		t.Errorf("parent step ids = %v, want [%s]", train.ParentStepIDs, load.ID)
	}
	if train.EndTime == nil {
		t.Error("train end time not set")
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusCompleted {
		t.Errorf("run status = %s, want COMPLETED", got)
	}

	model, err := h.store.GetArtifact(ctx, train.OutputArtifacts["model"])
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	wantURI := artifacts.GenerateURI(h.artifacts.Identity().Path, "train", "model", train.ID)
	if model.URI != wantURI {
		t.Errorf("model uri = %q, want %q", model.URI, wantURI)
	}
	if model.ParentStepID != train.ID {
		t.Errorf("model parent = %s, want %s", model.ParentStepID, train.ID)
	}

	data, err := h.artifacts.ReadFile(ctx, model.URI, artifacts.DataFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("model is not JSON: %v", err)
	}
	if out["trained_on"] != float64(3) {
		t.Errorf("trained_on = %v, want 3", out["trained_on"])
	}
}

func TestLaunch_CacheHit(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()

	for _, step := range []string{"load", "train"} {
		if err := h.launch(t, d, step, "r1"); err != nil {
			t.Fatalf("launch %s in r1: %v", step, err)
		}
	}
	if h.exec.calls != 2 {
		t.Fatalf("executions after r1 = %d, want 2", h.exec.calls)
	}

	for _, step := range []string{"load", "train"} {
		if err := h.launch(t, d, step, "r2"); err != nil {
			t.Fatalf("launch %s in r2: %v", step, err)
		}
	}
	if h.exec.calls != 2 {
		t.Errorf("executions after r2 = %d, want 2", h.exec.calls)
	}

	for _, step := range []string{"load", "train"} {
		first := h.stepRun(t, d, "r1", step)
		second := h.stepRun(t, d, "r2", step)

		if second.Status != domain.StatusCached {
			t.Errorf("%s status = %s, want CACHED", step, second.Status)
		}
		if second.OriginalStepRunID == nil || *second.OriginalStepRunID != first.ID {
			t.Errorf("%s original = %v, want %s", step, second.OriginalStepRunID, first.ID)
		}
		if second.CacheKey != first.CacheKey {
			t.Errorf("%s cache key changed between runs", step)
		}
		for name, id := range first.OutputArtifacts {
			if second.OutputArtifacts[name] != id {
				t.Errorf("%s output %q = %s, want %s", step, name, second.OutputArtifacts[name], id)
			}
		}
		if second.EndTime == nil || !second.EndTime.Equal(second.StartTime) {
			t.Errorf("%s cached end time = %v, want start time", step, second.EndTime)
		}
	}

	if got := h.runStatus(t, d, "r2"); got != domain.StatusCached {
		t.Errorf("r2 status = %s, want CACHED", got)
	}
}

func TestLaunch_CacheDisabled(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *domain.Deployment)
	}{
		{"pipeline level", func(d *domain.Deployment) { d.Pipeline.EnableCache = false }},
		{"step level", func(d *domain.Deployment) {
			step := d.Steps["load"]
			step.Config.EnableCache = boolPtr(false)
			d.Steps["load"] = step
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := trainingDeployment()
			tt.modify(d)

			for _, runID := range []string{"r1", "r2"} {
				if err := h.launch(t, d, "load", runID); err != nil {
					t.Fatalf("launch in %s: %v", runID, err)
				}
			}

			if h.exec.calls != 2 {
				t.Errorf("executions = %d, want 2", h.exec.calls)
			}
			if got := h.stepRun(t, d, "r2", "load").Status; got != domain.StatusCompleted {
				t.Errorf("status = %s, want COMPLETED", got)
			}
		})
	}
}

func TestLaunch_ExecutorFailure(t *testing.T) {
	h := newHarness(t)
	d := singleStepDeployment(domain.StepConfig{
		Name:       "boom",
		Source:     steps.SourceFail,
		Parameters: map[string]any{"message": "disk full"},
		Outputs:    map[string]domain.OutputConfig{"out": {}},
	})

	err := h.launch(t, d, "boom", "r1")
	if !errors.Is(err, steps.ErrStepFailed) {
		t.Fatalf("err = %v, want ErrStepFailed", err)
	}

	failed := h.stepRun(t, d, "r1", "boom")
	if failed.Status != domain.StatusFailed {
		t.Errorf("step status = %s, want FAILED", failed.Status)
	}
	if failed.EndTime == nil {
		t.Error("end time not set")
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusFailed {
		t.Errorf("run status = %s, want FAILED", got)
	}

	uri := artifacts.GenerateURI(h.artifacts.Identity().Path, "boom", "out", failed.ID)
	exists, err := h.artifacts.Exists(context.Background(), uri)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Errorf("output %s still exists after failure", uri)
	}
}

func TestLaunch_CancelledOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.store = newAPIClient(t)

	d := singleStepDeployment(domain.StepConfig{
		Name:    "slow",
		Source:  steps.SourceDelay,
		Outputs: map[string]domain.OutputConfig{"out": {}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := New(Config{
		Store:             h.store,
		Artifacts:         h.artifacts,
		InProcess:         &cancellingExecutor{cancel: cancel},
		Deployment:        d,
		StepName:          "slow",
		OrchestratorRunID: "r1",
		Identity:          Identity{UserID: uuid.New(), ProjectID: projectID},
		Logger:            discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.Launch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	slow := h.stepRun(t, d, "r1", "slow")
	if slow.Status != domain.StatusFailed || slow.EndTime == nil {
		t.Errorf("slow = %s (end %v), want FAILED with end time", slow.Status, slow.EndTime)
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusFailed {
		t.Errorf("run status = %s, want FAILED", got)
	}

	uri := artifacts.GenerateURI(h.artifacts.Identity().Path, "slow", "out", slow.ID)
	if exists, _ := h.artifacts.Exists(context.Background(), uri); exists {
		t.Errorf("output %s still exists after cancellation", uri)
	}
}

func TestLaunch_PartialOutputRegistration(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyStore{Store: h.store, failOn: 2}
	h.store = flaky

	d := singleStepDeployment(domain.StepConfig{
		Name:    "split",
		Source:  steps.SourceTransform,
		Outputs: map[string]domain.OutputConfig{"a": {}, "b": {}},
	})

	if err := h.launch(t, d, "split", "r1"); err == nil {
		t.Fatal("expected registration error")
	}

	split := h.stepRun(t, d, "r1", "split")
	if split.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", split.Status)
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusFailed {
		t.Errorf("run status = %s, want FAILED", got)
	}

	ctx := context.Background()
	registered, err := h.store.ListArtifacts(ctx, domain.ArtifactFilter{ParentStepID: split.ID})
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(registered) != 1 || registered[0].Name != "a" {
		t.Fatalf("registered = %+v, want only output a", registered)
	}

	// Запись о выходе a ссылается на существующие данные.
	if _, err := h.artifacts.ReadFile(ctx, registered[0].URI, artifacts.DataFile); err != nil {
		t.Errorf("registered output %s lost its data: %v", registered[0].URI, err)
	}

	b := artifacts.GenerateURI(h.artifacts.Identity().Path, "split", "b", split.ID)
	if exists, _ := h.artifacts.Exists(ctx, b); exists {
		t.Errorf("unregistered output %s still exists", b)
	}
}

func TestLaunch_MissingUpstream(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()

	err := h.launch(t, d, "train", "r1")
	if !errors.Is(err, ErrInputResolution) {
		t.Fatalf("err = %v, want ErrInputResolution", err)
	}
	if h.exec.calls != 0 {
		t.Errorf("executions = %d, want 0", h.exec.calls)
	}

	// Шаг зарегистрирован сразу в FAILED: незавершённых записей не остаётся.
	train := h.stepRun(t, d, "r1", "train")
	if train.Status != domain.StatusFailed || train.EndTime == nil {
		t.Errorf("train = %s (end %v), want FAILED with end time", train.Status, train.EndTime)
	}
	if got := h.runStatus(t, d, "r1"); got != domain.StatusFailed {
		t.Errorf("run status = %s, want FAILED", got)
	}
}

func TestResolveInputs_RegistersNothing(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()
	ctx := context.Background()
	runID := uuid.New()

	_, _, err := ResolveInputs(ctx, h.store, d.Steps["train"], runID)
	if !errors.Is(err, ErrInputResolution) {
		t.Fatalf("err = %v, want ErrInputResolution", err)
	}

	registered, err := h.store.ListRunSteps(ctx, domain.StepRunFilter{RunID: runID})
	if err != nil {
		t.Fatalf("ListRunSteps: %v", err)
	}
	if len(registered) != 0 {
		t.Errorf("registered = %d step runs, want 0", len(registered))
	}
}

func TestResolveInputs_MissingOutput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	run, _, err := h.store.GetOrCreateRun(ctx, &domain.PipelineRun{
		ID:        uuid.New(),
		Name:      "r1",
		ProjectID: projectID,
		Status:    domain.StatusRunning,
	})
	if err != nil {
		t.Fatalf("GetOrCreateRun: %v", err)
	}
	if _, err := h.store.CreateRunStep(ctx, &domain.StepRun{
		Name:          "load",
		PipelineRunID: run.ID,
		Status:        domain.StatusRunning,
	}); err != nil {
		t.Fatalf("CreateRunStep: %v", err)
	}

	step := domain.Step{Spec: domain.StepSpec{
		Inputs: map[string]domain.InputSpec{"dataset": {StepName: "load", OutputName: "missing"}},
	}}
	if _, _, err := ResolveInputs(ctx, h.store, step, run.ID); !errors.Is(err, ErrInputResolution) {
		t.Errorf("err = %v, want ErrInputResolution", err)
	}
}

func TestLaunch_RunReservationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()
	ctx := context.Background()

	if err := h.launch(t, d, "load", "r1"); err != nil {
		t.Fatalf("launch load: %v", err)
	}
	if err := h.launch(t, d, "train", "r1"); err != nil {
		t.Fatalf("launch train: %v", err)
	}

	runs, err := h.store.ListRuns(ctx, domain.PipelineRunFilter{PipelineID: d.Pipeline.ID})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}

	run := runs[0]
	if run.ID != RunIDForOrchestratorRun(d.OrchestratorID, "r1") {
		t.Errorf("run id = %s", run.ID)
	}
	if run.NumSteps != 2 || !run.EnableCache || run.ProjectID != projectID {
		t.Errorf("run = %+v", run)
	}
	if !strings.HasPrefix(run.Name, "training-") {
		t.Errorf("run name = %q", run.Name)
	}
	if run.PipelineConfiguration["name"] != "training" {
		t.Errorf("pipeline configuration = %v", run.PipelineConfiguration)
	}
}

func TestLaunch_ArtifactCollision(t *testing.T) {
	h := newHarness(t)
	colliding := &collidingStore{Store: h.artifacts, output: "b"}
	h.artifacts = colliding

	d := singleStepDeployment(domain.StepConfig{
		Name:    "split",
		Source:  steps.SourceTransform,
		Outputs: map[string]domain.OutputConfig{"a": {}, "b": {}},
	})

	err := h.launch(t, d, "split", "r1")
	if !errors.Is(err, artifacts.ErrArtifactExists) {
		t.Fatalf("err = %v, want ErrArtifactExists", err)
	}
	if h.exec.calls != 0 {
		t.Errorf("executions = %d, want 0", h.exec.calls)
	}

	split := h.stepRun(t, d, "r1", "split")
	if split.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", split.Status)
	}

	root := colliding.Identity().Path
	wantRemoved := artifacts.GenerateURI(root, "split", "a", split.ID)
	collided := artifacts.GenerateURI(root, "split", "b", split.ID)
	if len(colliding.removed) != 1 || colliding.removed[0] != wantRemoved {
		t.Errorf("removed = %v, want [%s]", colliding.removed, wantRemoved)
	}
	for _, uri := range colliding.removed {
		if uri == collided {
			t.Errorf("colliding uri %s was removed", uri)
		}
	}
}

func TestLaunch_UnknownOperator(t *testing.T) {
	h := newHarness(t)
	d := singleStepDeployment(domain.StepConfig{
		Name:         "remote",
		Source:       steps.SourceTransform,
		StepOperator: "sagemaker",
		Outputs:      map[string]domain.OutputConfig{"out": {}},
	})

	err := h.launch(t, d, "remote", "r1")
	if !errors.Is(err, executor.ErrStepOperatorNotFound) {
		t.Fatalf("err = %v, want ErrStepOperatorNotFound", err)
	}

	remote := h.stepRun(t, d, "r1", "remote")
	if remote.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", remote.Status)
	}
	uri := artifacts.GenerateURI(h.artifacts.Identity().Path, "remote", "out", remote.ID)
	if exists, _ := h.artifacts.Exists(context.Background(), uri); exists {
		t.Error("output directory created for unknown operator")
	}
}

func TestLaunch_StepOperator(t *testing.T) {
	h := newHarness(t)
	op := &entrypointOperator{cfg: EntrypointConfig{
		Store:     h.store,
		Artifacts: h.artifacts,
		InProcess: executor.NewInProcess(steps.DefaultRegistry(), h.artifacts, discardLogger()),
		Logger:    discardLogger(),
	}}
	h.operators = map[string]*executor.Operator{
		"queue": executor.NewOperator("queue", op, "conduit"),
	}

	d := trainingDeployment()
	train := d.Steps["train"]
	train.Config.StepOperator = "queue"
	d.Steps["train"] = train

	for _, step := range []string{"load", "train"} {
		if err := h.launch(t, d, step, "r1"); err != nil {
			t.Fatalf("launch %s: %v", step, err)
		}
	}

	// Через operator выполняется только train.
	if h.exec.calls != 1 {
		t.Errorf("in-process executions = %d, want 1", h.exec.calls)
	}

	run := h.stepRun(t, d, "r1", "train")
	if run.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", run.Status)
	}
	want := executor.EntrypointCommand("conduit", "train", run.ID)
	if strings.Join(op.command, " ") != strings.Join(want, " ") {
		t.Errorf("command = %v, want %v", op.command, want)
	}

	model, err := h.store.GetArtifact(context.Background(), run.OutputArtifacts["model"])
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	data, err := h.artifacts.ReadFile(context.Background(), model.URI, artifacts.DataFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"trained_on":3`) {
		t.Errorf("model = %s", data)
	}
}

func TestRunEntrypoint_WrongStep(t *testing.T) {
	h := newHarness(t)
	d := trainingDeployment()
	if err := h.launch(t, d, "load", "r1"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	load := h.stepRun(t, d, "r1", "load")

	err := RunEntrypoint(context.Background(), EntrypointConfig{
		Store:     h.store,
		Artifacts: h.artifacts,
		InProcess: h.exec,
		StepName:  "train",
		StepRunID: load.ID,
	})
	if !errors.Is(err, ErrUnknownStep) {
		t.Errorf("err = %v, want ErrUnknownStep", err)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "0.250s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d2h3m4s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := HumanDuration(tt.d); got != tt.want {
				t.Errorf("HumanDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
