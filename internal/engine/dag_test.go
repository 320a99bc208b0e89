package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/Conduit/internal/domain"
)

// step собирает шаг с upstream зависимостями и входами вида "вход=шаг.выход".
func step(name string, upstream []string, inputs map[string]string, outputs ...string) domain.Step {
	s := domain.Step{
		Config: domain.StepConfig{Name: name, Source: "builtin.transform", Outputs: map[string]domain.OutputConfig{}},
		Spec:   domain.StepSpec{UpstreamSteps: upstream, Inputs: map[string]domain.InputSpec{}},
	}
	for _, out := range outputs {
		s.Config.Outputs[out] = domain.OutputConfig{}
	}
	for in, ref := range inputs {
		for i := 0; i < len(ref); i++ {
			if ref[i] == '.' {
				s.Spec.Inputs[in] = domain.InputSpec{StepName: ref[:i], OutputName: ref[i+1:]}
				break
			}
		}
	}
	return s
}

func deployment(steps ...domain.Step) *domain.Deployment {
	d := &domain.Deployment{Steps: make(map[string]domain.Step, len(steps))}
	for _, s := range steps {
		d.Steps[s.Config.Name] = s
	}
	return d
}

func TestBuildDAG_SimpleChain(t *testing.T) {
	d := deployment(
		step("A", nil, nil, "out"),
		step("B", []string{"A"}, nil, "out"),
		step("C", nil, map[string]string{"in": "B.out"}),
	)

	dag, err := BuildDAG(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}
	if len(dag.RootNodes) != 1 || dag.RootNodes[0].Name != "A" {
		t.Errorf("expected root node A, got %v", dag.RootNodes)
	}

	nodeB := dag.GetNode("B")
	if len(nodeB.DependsOn) != 1 || nodeB.DependsOn[0].Name != "A" {
		t.Error("node B should depend on A")
	}

	// Зависимость через вход без upstream_steps
	nodeC := dag.GetNode("C")
	if len(nodeC.DependsOn) != 1 || nodeC.DependsOn[0].Name != "B" {
		t.Error("node C should depend on B through its input")
	}
}

func TestBuildDAG_InputAndUpstreamDeduplicated(t *testing.T) {
	d := deployment(
		step("load", nil, nil, "data"),
		step("train", []string{"load"}, map[string]string{"dataset": "load.data", "extra": "load.data"}),
	)

	dag, err := BuildDAG(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := dag.GetNode("train").InDegree; got != 1 {
		t.Errorf("InDegree = %d, want 1", got)
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	d := deployment(
		step("A", nil, nil),
		step("B", []string{"A"}, nil),
		step("C", []string{"A"}, nil),
		step("D", []string{"B", "C"}, nil),
	)

	dag, err := BuildDAG(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := dag.GetNode("D").InDegree; got != 2 {
		t.Errorf("D InDegree = %d, want 2", got)
	}
	if got := len(dag.GetNode("A").Dependents); got != 2 {
		t.Errorf("A dependents = %d, want 2", got)
	}

	want := []string{"A", "B", "C", "D"}
	if got := dag.StepNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestBuildDAG_Errors(t *testing.T) {
	tests := []struct {
		name    string
		d       *domain.Deployment
		wantErr error
	}{
		{
			"cycle",
			deployment(step("A", []string{"B"}, nil), step("B", []string{"A"}, nil)),
			ErrCyclicDependency,
		},
		{
			"self",
			deployment(step("A", []string{"A"}, nil)),
			ErrSelfDependency,
		},
		{
			"unknown upstream",
			deployment(step("A", []string{"Z"}, nil)),
			ErrMissingDependency,
		},
		{
			"unknown producer",
			deployment(step("A", nil, map[string]string{"in": "Z.out"})),
			ErrMissingDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDAG(tt.d)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	d := deployment(
		step("zeta", nil, nil),
		step("alpha", nil, nil),
		step("mid", []string{"zeta", "alpha"}, nil),
		step("beta", []string{"alpha"}, nil),
	)

	for i := 0; i < 20; i++ {
		dag, err := BuildDAG(d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"alpha", "beta", "zeta", "mid"}
		if got := dag.StepNames(); !reflect.DeepEqual(got, want) {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestGetReadyNodes(t *testing.T) {
	d := deployment(
		step("A", nil, nil),
		step("B", []string{"A"}, nil),
		step("C", []string{"A"}, nil),
		step("D", []string{"B", "C"}, nil),
	)
	dag, err := BuildDAG(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := func(nodes []*Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.Name
		}
		return out
	}

	tests := []struct {
		name      string
		completed map[string]bool
		running   map[string]bool
		want      []string
	}{
		{"start", nil, nil, []string{"A"}},
		{"after A", map[string]bool{"A": true}, nil, []string{"B", "C"}},
		{"B running", map[string]bool{"A": true}, map[string]bool{"B": true}, []string{"C"}},
		{"join", map[string]bool{"A": true, "B": true, "C": true}, nil, []string{"D"}},
		{"done", map[string]bool{"A": true, "B": true, "C": true, "D": true}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(dag.GetReadyNodes(tt.completed, tt.running))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ready = %v, want %v", got, tt.want)
			}
		})
	}

	if !dag.IsComplete(map[string]bool{"A": true, "B": true, "C": true, "D": true}) {
		t.Error("expected complete")
	}
	if dag.IsComplete(map[string]bool{"A": true}) {
		t.Error("expected incomplete")
	}
}

type sourceSet map[string]bool

func (s sourceSet) Has(source string) bool { return s[source] }

func TestValidate(t *testing.T) {
	sources := sourceSet{"builtin.transform": true}

	valid := deployment(step("load", nil, nil, "data"), step("train", nil, map[string]string{"in": "load.data"}))
	dag, err := Validate(valid, sources, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(dag.StepNames(), []string{"load", "train"}) {
		t.Errorf("order = %v", dag.StepNames())
	}

	unknownSource := deployment(step("load", nil, nil))
	s := unknownSource.Steps["load"]
	s.Config.Source = "custom.missing"
	unknownSource.Steps["load"] = s
	if _, err := Validate(unknownSource, sources, nil); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("unknown source: err = %v", err)
	}

	remote := deployment(step("load", nil, nil))
	s = remote.Steps["load"]
	s.Config.StepOperator = "queue"
	remote.Steps["load"] = s
	if _, err := Validate(remote, sources, nil); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("unknown operator: err = %v", err)
	}
	if _, err := Validate(remote, sources, []string{"queue"}); err != nil {
		t.Errorf("configured operator: %v", err)
	}

	var verr *ValidationError
	if _, err := Validate(unknownSource, sources, nil); !errors.As(err, &verr) || verr.StepName != "load" {
		t.Errorf("expected ValidationError for load, got %v", err)
	}

	broken := deployment(step("train", nil, map[string]string{"in": "load.data"}))
	if _, err := Validate(broken, sources, nil); !errors.Is(err, domain.ErrInvalidDeployment) {
		t.Errorf("broken: err = %v, want ErrInvalidDeployment", err)
	}
}
