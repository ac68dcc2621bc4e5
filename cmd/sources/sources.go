// Package sources implements the feed source listing command.
package sources

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/checkpoint-ingestor/cmd/common"
	"github.com/jonesrussell/checkpoint-ingestor/internal/config"
)

// Command returns the sources command.
func Command(getDeps func() (*common.Deps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage feed sources",
	}

	cmd.AddCommand(listCommand(getDeps))

	return cmd
}

// listCommand returns the sources list subcommand.
func listCommand(getDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured feed sources",
		RunE: func(_ *cobra.Command, _ []string) error {
			deps, err := getDeps()
			if err != nil {
				return err
			}

			sources, err := config.LoadSources(deps.Config.Feeds.SourcesFile)
			if err != nil {
				return err
			}

			renderSources(sources)
			return nil
		},
	}
}

// renderSources prints the master and seed lists as tables.
func renderSources(sources *config.Sources) {
	if len(sources.Master) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("Master Sources")
		t.AppendHeader(table.Row{"Name", "Feed URL", "Type", "Tier", "Confidence"})
		for _, src := range sources.Master {
			t.AppendRow(table.Row{src.Name, src.FeedURL, src.Type, src.Tier, src.Confidence})
		}
		t.Render()
	}

	if len(sources.Seeds) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("Seed Sources")
		t.AppendHeader(table.Row{"ID", "Name", "Feed URL", "County", "City", "Keywords"})
		for _, seed := range sources.Seeds {
			t.AppendRow(table.Row{seed.ID, seed.Name, seed.FeedURL, seed.County, seed.City, seed.Keywords})
		}
		t.Render()
	}
}
