package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/orchestrator"
)

var runHeaders = []string{"ID", "NAME", "STATUS", "STEPS", "CACHE", "CREATED"}

func runRow(r *domain.PipelineRun) []string {
	return []string{
		r.ID.String(),
		r.Name,
		string(r.Status),
		strconv.Itoa(r.NumSteps),
		strconv.FormatBool(r.EnableCache),
		formatTime(r.CreatedAt),
	}
}

// NewRunCmd создаёт команду локального запуска всего pipeline.
func NewRunCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	var deploymentPath string
	var runID string
	var parallelism int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a whole pipeline with the local orchestrator",
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

			if runID == "" {
				runID = uuid.NewString()
			}
			if !cmd.Flags().Changed("parallelism") {
				parallelism = rt.Parallelism
			}

			o := orchestrator.New(orchestrator.Config{
				Store:       rt.Store,
				Artifacts:   rt.Artifacts,
				InProcess:   rt.InProcess,
				Operators:   rt.Operators,
				Sources:     rt.Registry,
				Identity:    rt.Identity,
				Parallelism: parallelism,
				Logger:      rt.Logger,
			})

			run, runErr := o.Run(cmd.Context(), d, runID)
			if run != nil {
				out := outputFn()
				out.Success(fmt.Sprintf("Run %s finished with status %s (orchestrator run id %s)",
					run.ID, run.Status, runID))
				out.Print(runHeaders, [][]string{runRow(run)}, run)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&deploymentPath, "deployment", "d", "", "Path to deployment YAML")
	cmd.Flags().StringVar(&runID, "run-id", "", "Orchestrator run ID (generated if empty; reuse to resume a run)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "Maximum number of steps running at once")
	cmd.MarkFlagRequired("deployment")

	return cmd
}
