package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

type fakeRunner struct {
	calls []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, _ *domain.Deployment, orchestratorRunID string) (*domain.PipelineRun, error) {
	f.calls = append(f.calls, orchestratorRunID)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PipelineRun{ID: uuid.New(), Status: domain.StatusCompleted}, nil
}

func testDeployment() *domain.Deployment {
	return &domain.Deployment{
		Pipeline: domain.PipelineConfig{Name: "nightly"},
		Steps: map[string]domain.Step{
			"only": {Config: domain.StepConfig{Name: "only", Source: "builtin.transform"}},
		},
	}
}

func newScheduler(t *testing.T, runner PipelineRunner, expr string) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Runner:     runner,
		Deployment: testDeployment(),
		Cron:       expr,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@hourly", false},
		{"@every 10m", false},
		{"", true},
		{"61 * * * *", true},
		{"* * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr && !errors.Is(err, ErrInvalidCron) {
				t.Errorf("err = %v, want ErrInvalidCron", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNextDue(t *testing.T) {
	schedule, err := ParseSchedule("0 3 * * *")
	if err != nil {
		t.Fatal(err)
	}
	from := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	got := NextDue(schedule, from, nil)
	want := time.Date(2026, 1, 11, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextDue = %v, want %v", got, want)
	}

	// 03:00 по Москве — 00:00 UTC
	msk := time.FixedZone("MSK", 3*60*60)
	got = NextDue(schedule, from, msk)
	want = time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextDue in MSK = %v, want %v", got, want)
	}
}

func TestTick_DeterministicRunID(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(t, runner, "@hourly")
	due := time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := s.Tick(context.Background(), due); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	want := OrchestratorRunID("nightly", due)
	if len(runner.calls) != 2 || runner.calls[0] != want || runner.calls[1] != want {
		t.Errorf("calls = %v, want twice %q", runner.calls, want)
	}
}

func TestTick_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("step failed")}
	s := newScheduler(t, runner, "@hourly")

	if _, err := s.Tick(context.Background(), time.Now()); err == nil {
		t.Error("expected error from runner")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(t, runner, "@every 1s")

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Start = %v, want deadline exceeded", err)
	}
	if len(runner.calls) == 0 {
		t.Error("expected at least one tick")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Config{Runner: &fakeRunner{}, Deployment: testDeployment(), Cron: "bad"}); !errors.Is(err, ErrInvalidCron) {
		t.Errorf("err = %v, want ErrInvalidCron", err)
	}
	if _, err := New(Config{Runner: &fakeRunner{}, Deployment: testDeployment(), Cron: "@hourly", Timezone: "Mars/Olympus"}); err == nil {
		t.Error("expected timezone error")
	}
	if _, err := New(Config{Cron: "@hourly"}); err == nil {
		t.Error("expected error without runner")
	}
}
