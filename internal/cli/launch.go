package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/launcher"
)

// RuntimeFunc лениво создаёт Runtime после парсинга флагов.
type RuntimeFunc func(ctx context.Context) (*Runtime, error)

// NewLaunchCmd создаёт команду запуска одного шага.
//
// Так оркестратор вызывает Conduit для каждого шага: процессы разных
// шагов одного run сходятся на одном pipeline run через --run-id.
func NewLaunchCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	var deploymentPath string
	var stepName string
	var runID string

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a single pipeline step",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.LoadDeployment(deploymentPath)
			if err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			l, err := launcher.New(launcher.Config{
				Store:             rt.Store,
				Artifacts:         rt.Artifacts,
				InProcess:         rt.InProcess,
				Operators:         rt.Operators,
				Deployment:        d,
				StepName:          stepName,
				OrchestratorRunID: runID,
				Identity:          rt.Identity,
				Logger:            rt.Logger,
			})
			if err != nil {
				return err
			}
			if err := l.Launch(cmd.Context()); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Step %s launched in run %s",
				stepName, launcher.RunIDForOrchestratorRun(d.OrchestratorID, runID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&deploymentPath, "deployment", "d", "", "Path to deployment YAML")
	cmd.Flags().StringVar(&stepName, "step", "", "Step name to launch")
	cmd.Flags().StringVar(&runID, "run-id", "", "Orchestrator run ID shared by all steps of the run")
	cmd.MarkFlagRequired("deployment")
	cmd.MarkFlagRequired("step")
	cmd.MarkFlagRequired("run-id")

	return cmd
}

// NewStepEntrypointCmd создаёт служебную команду, которую step operator
// выполняет на удалённой стороне.
func NewStepEntrypointCmd(runtimeFn RuntimeFunc) *cobra.Command {
	var stepName string
	var stepRunID string

	cmd := &cobra.Command{
		Use:    "step-entrypoint",
		Short:  "Run an already registered step run (used by step operators)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(stepRunID, "step run id")
			if err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			return launcher.RunEntrypoint(cmd.Context(), launcher.EntrypointConfig{
				Store:     rt.Store,
				Artifacts: rt.Artifacts,
				InProcess: rt.InProcess,
				StepName:  stepName,
				StepRunID: id,
				Logger:    rt.Logger,
			})
		},
	}

	cmd.Flags().StringVar(&stepName, "step-name", "", "Step name")
	cmd.Flags().StringVar(&stepRunID, "step-run-id", "", "Step run ID")
	cmd.MarkFlagRequired("step-name")
	cmd.MarkFlagRequired("step-run-id")

	return cmd
}
