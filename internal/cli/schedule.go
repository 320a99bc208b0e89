package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/orchestrator"
	"github.com/shaiso/Conduit/internal/scheduler"
)

// NewScheduleCmd создаёт команду запуска pipeline по cron-расписанию.
// Команда блокируется до сигнала завершения.
func NewScheduleCmd(runtimeFn RuntimeFunc, outputFn func() *Output) *cobra.Command {
	var deploymentPath string
	var cronExpr string
	var timezone string
	var parallelism int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run a pipeline on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.LoadDeployment(deploymentPath)
			if err != nil {
				return err
			}
			if _, err := scheduler.ParseSchedule(cronExpr); err != nil {
				return err
			}

			rt, err := runtimeFn(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("parallelism") {
				parallelism = rt.Parallelism
			}

			sched, err := scheduler.New(scheduler.Config{
				Runner: orchestrator.New(orchestrator.Config{
					Store:       rt.Store,
					Artifacts:   rt.Artifacts,
					InProcess:   rt.InProcess,
					Operators:   rt.Operators,
					Sources:     rt.Registry,
					Identity:    rt.Identity,
					Parallelism: parallelism,
					Logger:      rt.Logger,
				}),
				Deployment: d,
				Cron:       cronExpr,
				Timezone:   timezone,
				Logger:     rt.Logger,
			})
			if err != nil {
				return err
			}

			outputFn().Success("Scheduler started for pipeline " + d.Pipeline.Name)
			if err := sched.Start(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deploymentPath, "deployment", "d", "", "Path to deployment YAML")
	cmd.Flags().StringVar(&cronExpr, "cron", "", `Cron expression ("0 3 * * *", "@hourly", "@every 30m")`)
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone of the cron expression")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "Maximum number of steps running at once")
	cmd.MarkFlagRequired("deployment")
	cmd.MarkFlagRequired("cron")

	return cmd
}
