// Conduit CLI — запуск шагов и pipelines, просмотр runs.
//
// Использование:
//
//	conduit [--json] <command> [flags]
//
// Команды:
//
//	launch    Запуск одного шага (вызывается оркестратором)
//	run       Локальный запуск всего pipeline
//	runs      Просмотр pipeline runs
//	steps     Просмотр step runs и артефактов
//	schedule  Запуск pipeline по cron-расписанию
//
// Настройки берутся из окружения (CONDUIT_STORE_URL, CONDUIT_ARTIFACT_STORE,
// RABBITMQ_URL и т.д.), см. internal/config.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conduit/internal/cli"
	"github.com/shaiso/Conduit/internal/config"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Conduit — pipeline step launcher with caching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	runtimeFn := func(ctx context.Context) (*cli.Runtime, error) {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, err
		}
		return cli.NewRuntime(ctx, cfg, telemetry.SetupLogger())
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewLaunchCmd(runtimeFn, outputFn),
		cli.NewRunCmd(runtimeFn, outputFn),
		cli.NewRunsCmd(runtimeFn, outputFn),
		cli.NewStepsCmd(runtimeFn, outputFn),
		cli.NewScheduleCmd(runtimeFn, outputFn),
		cli.NewStepEntrypointCmd(runtimeFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
