// Package schedule implements the unattended cron runner command.
package schedule

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/checkpoint-ingestor/cmd/common"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
	"github.com/jonesrussell/checkpoint-ingestor/internal/runner"
)

// Command returns the schedule command.
func Command(getDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run core ingestion on a cron schedule",
		Long: `Run core ingestion on the configured cron schedule until interrupted
with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := getDeps()
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			pipeline, err := common.BuildPipeline(deps)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

			spec := deps.Config.Schedule.Spec
			_, err = c.AddFunc(spec, func() {
				run, runErr := pipeline.Coordinator.Run(cmd.Context(), runner.Options{
					Mode:    runner.ModeCore,
					Trigger: "cron",
				})
				if runErr != nil {
					deps.Logger.Error("scheduled run failed", logger.Error(runErr))
					return
				}
				deps.Logger.Info("scheduled run completed",
					logger.String("run_id", run.ID),
					logger.String("status", string(run.Status)),
				)
			})
			if err != nil {
				return fmt.Errorf("invalid cron spec %q: %w", spec, err)
			}

			deps.Logger.Info("scheduler started", logger.String("spec", spec))
			c.Start()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			deps.Logger.Info("scheduler stopping")
			<-c.Stop().Done()

			return nil
		},
	}
}
