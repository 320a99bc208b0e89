package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/steps"
)

// fakeOperator запоминает переданную команду.
type fakeOperator struct {
	command []string
	info    domain.StepRunInfo
	err     error
}

func (f *fakeOperator) Launch(_ context.Context, info domain.StepRunInfo, entrypoint []string) error {
	f.info = info
	f.command = entrypoint
	return f.err
}

// staticStep возвращает фиксированные выходы.
type staticStep struct {
	outputs map[string][]byte
	got     *steps.Request
}

func (s *staticStep) Source() string { return "test.static" }

func (s *staticStep) Execute(_ context.Context, req *steps.Request) (*steps.Response, error) {
	s.got = req
	return &steps.Response{Outputs: s.outputs}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelect(t *testing.T) {
	local := NewInProcess(steps.DefaultRegistry(), nil, nil)
	operators := map[string]*Operator{
		"queue": NewOperator("queue", &fakeOperator{}, ""),
	}

	tests := []struct {
		name     string
		config   domain.StepConfig
		wantKind Kind
		wantErr  error
	}{
		{"in process", domain.StepConfig{Name: "a"}, KindInProcess, nil},
		{"configured operator", domain.StepConfig{Name: "a", StepOperator: "queue"}, KindOperator, nil},
		{"unknown operator", domain.StepConfig{Name: "a", StepOperator: "sagemaker"}, "", ErrStepOperatorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.config, local, operators)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if sel.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", sel.Kind, tt.wantKind)
			}
			if sel.Executor == nil {
				t.Error("executor is nil")
			}
		})
	}
}

func TestOperator_Run(t *testing.T) {
	fake := &fakeOperator{}
	op := NewOperator("queue", fake, "/usr/local/bin/conduit")

	info := domain.StepRunInfo{
		Config:    domain.StepConfig{Name: "train"},
		StepRunID: uuid.MustParse("6f1c2b1e-1b7a-4c55-9d6f-7f0c1d2e3a4b"),
	}
	if err := op.Run(context.Background(), nil, nil, info); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"/usr/local/bin/conduit", "step-entrypoint",
		"--step-name", "train",
		"--step-run-id", "6f1c2b1e-1b7a-4c55-9d6f-7f0c1d2e3a4b",
	}
	if len(fake.command) != len(want) {
		t.Fatalf("command = %v, want %v", fake.command, want)
	}
	for i := range want {
		if fake.command[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, fake.command[i], want[i])
		}
	}
	if fake.info.StepRunID != info.StepRunID {
		t.Errorf("info not passed to operator")
	}
}

func TestOperator_RunError(t *testing.T) {
	boom := errors.New("remote failure")
	op := NewOperator("queue", &fakeOperator{err: boom}, "")

	if err := op.Run(context.Background(), nil, nil, domain.StepRunInfo{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func newLocalStore(t *testing.T) *artifacts.LocalStore {
	t.Helper()
	store, err := artifacts.NewLocalStore("", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func makeArtifact(t *testing.T, store artifacts.Store, step, output string, content []byte) *domain.Artifact {
	t.Helper()

	ctx := context.Background()
	uri := artifacts.GenerateURI(store.Identity().Path, step, output, uuid.New())
	if err := store.MakeDirs(ctx, uri); err != nil {
		t.Fatalf("MakeDirs: %v", err)
	}
	if content != nil {
		if err := store.WriteFile(ctx, uri, artifacts.DataFile, content); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return &domain.Artifact{Name: output, URI: uri}
}

func TestInProcess_Run(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	registry := steps.NewRegistry()
	static := &staticStep{outputs: map[string][]byte{"model": []byte("weights")}}
	registry.Register(static)

	inputs := map[string]*domain.Artifact{
		"dataset": makeArtifact(t, store, "load", "data", []byte(`{"rows": 3}`)),
	}
	outputs := map[string]*domain.Artifact{
		"model": makeArtifact(t, store, "train", "model", nil),
	}
	info := domain.StepRunInfo{
		Config: domain.StepConfig{
			Name:       "train",
			Source:     "test.static",
			Parameters: map[string]any{"note": "rows={{ .Inputs.dataset.rows }}"},
		},
		RunName: "nightly",
	}

	exec := NewInProcess(registry, store, discardLogger())
	if err := exec.Run(ctx, inputs, outputs, info); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if static.got.Parameters["note"] != "rows=3" {
		t.Errorf("rendered parameter = %v, want rows=3", static.got.Parameters["note"])
	}
	if string(static.got.Inputs["dataset"]) != `{"rows": 3}` {
		t.Errorf("input = %q", static.got.Inputs["dataset"])
	}

	data, err := store.ReadFile(ctx, outputs["model"].URI, artifacts.DataFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "weights" {
		t.Errorf("output = %q, want weights", data)
	}
}

func TestInProcess_Errors(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	registry := steps.DefaultRegistry()
	registry.Register(&staticStep{outputs: map[string][]byte{}})
	exec := NewInProcess(registry, store, discardLogger())

	tests := []struct {
		name    string
		source  string
		outputs map[string]*domain.Artifact
		wantErr error
	}{
		{"unknown source", "nope", nil, steps.ErrStepNotFound},
		{"step fails", steps.SourceFail, nil, steps.ErrStepFailed},
		{
			"missing output", "test.static",
			map[string]*domain.Artifact{"out": makeArtifact(t, store, "s", "out", nil)},
			ErrMissingOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := domain.StepRunInfo{Config: domain.StepConfig{Name: "s", Source: tt.source}}
			err := exec.Run(ctx, nil, tt.outputs, info)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
