package cli

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/domain"
)

// NewRunsCmd создаёт группу команд для просмотра pipeline runs.
func NewRunsCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect pipeline runs",
	}

	cmd.AddCommand(
		newRunsListCmd(runtimeFn, outputFn),
		newRunsShowCmd(runtimeFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	var status string
	var pipelineID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.PipelineRunFilter{Limit: limit}
			if status != "" {
				s, ok := domain.ParseExecutionStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = s
			}
			if pipelineID != "" {
				id, err := parseID(pipelineID, "pipeline id")
				if err != nil {
					return err
				}
				filter.PipelineID = id
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			filter.ProjectID = rt.Identity.ProjectID
			runs, err := rt.Store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}
			outputFn().Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, COMPLETED, FAILED, CACHED)")
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsShowCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "run id")
			if err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.Store.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"ID", "NAME", "ORCHESTRATOR_RUN_ID", "STATUS", "STEPS", "CACHE", "CREATED", "UPDATED"},
				[][]string{{
					run.ID.String(), run.Name, run.OrchestratorRunID, string(run.Status),
					fmt.Sprintf("%d", run.NumSteps), fmt.Sprintf("%t", run.EnableCache),
					formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
				}},
				run,
			)
			return nil
		},
	}
}

// NewStepsCmd создаёт группу команд для просмотра step runs.
func NewStepsCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Inspect step runs",
	}

	cmd.AddCommand(
		newStepsListCmd(runtimeFn, outputFn),
		newStepsArtifactsCmd(runtimeFn, outputFn),
	)

	return cmd
}

func newStepsListCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list RUN_ID",
		Short: "List step runs of a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseID(args[0], "run id")
			if err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			stepRuns, err := rt.Store.ListRunSteps(cmd.Context(), domain.StepRunFilter{RunID: runID})
			if err != nil {
				return err
			}
			sort.Slice(stepRuns, func(i, j int) bool {
				return stepRuns[i].StartTime.Before(stepRuns[j].StartTime)
			})

			rows := make([][]string, len(stepRuns))
			for i, s := range stepRuns {
				rows[i] = []string{
					s.ID.String(), s.Name, string(s.Status),
					formatTime(s.StartTime), formatTimePtr(s.EndTime),
					shortKey(s.CacheKey), formatIDPtr(s.OriginalStepRunID),
				}
			}
			outputFn().Print(
				[]string{"ID", "NAME", "STATUS", "STARTED", "ENDED", "CACHE_KEY", "ORIGINAL"},
				rows,
				stepRuns,
			)
			return nil
		},
	}
}

func newStepsArtifactsCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts STEP_RUN_ID",
		Short: "List output artifacts produced by a step run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepRunID, err := parseID(args[0], "step run id")
			if err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			list, err := rt.Store.ListArtifacts(cmd.Context(), domain.ArtifactFilter{ParentStepID: stepRunID})
			if err != nil {
				return err
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

			rows := make([][]string, len(list))
			for i, a := range list {
				rows[i] = []string{a.ID.String(), a.Name, a.URI, a.Materializer, a.DataType}
			}
			outputFn().Print([]string{"ID", "NAME", "URI", "MATERIALIZER", "DATA_TYPE"}, rows, list)
			return nil
		},
	}
}

func parseID(s, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return id, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	if key == "" {
		return "-"
	}
	return key
}
