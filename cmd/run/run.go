// Package run implements the single ingestion run command.
package run

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/checkpoint-ingestor/cmd/common"
	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/runner"
)

// Command returns the run command.
func Command(getDeps func() (*common.Deps, error)) *cobra.Command {
	var mode string
	var seedID int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one ingestion run",
		Long: `Execute one ingestion run and exit.

In core mode the checkpoint table is scraped, geocoded, and reconciled
against the database, then the master feed list is swept for announcements.
In discovery mode a single seed source is swept with its location scope.`,
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

			if mode == runner.ModeDiscovery && seedID == 0 {
				return fmt.Errorf("discovery mode requires --seed")
			}

			run, err := pipeline.Coordinator.Run(cmd.Context(), runner.Options{
				Mode:    mode,
				SeedID:  seedID,
				Trigger: "manual",
			})
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			printSummary(run)

			if run.Status == domain.RunFailed {
				return fmt.Errorf("run %s failed with %d errors", run.ID, len(run.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", runner.ModeCore, "run mode (core or discovery)")
	cmd.Flags().IntVar(&seedID, "seed", 0, "seed source ID for discovery mode")

	return cmd
}

// printSummary renders the run result as a table on stdout.
func printSummary(run *domain.RunLog) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Found", "New", "Updated", "Skipped", "Errors"})
	t.AppendRow(table.Row{
		run.ID, run.Status, run.Found, run.New, run.Updated, run.Skipped, len(run.Errors),
	})
	t.Render()

	if len(run.Errors) == 0 {
		return
	}

	e := table.NewWriter()
	e.SetOutputMirror(os.Stdout)
	e.AppendHeader(table.Row{"Source", "URL", "Error"})
	for _, runErr := range run.Errors {
		e.AppendRow(table.Row{runErr.Source, runErr.URL, runErr.Message})
	}
	e.Render()
}
