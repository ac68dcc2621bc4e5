// Package cmd implements the command-line interface for the checkpoint
// ingestion pipeline.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/checkpoint-ingestor/cmd/common"
	cmdmigrate "github.com/jonesrussell/checkpoint-ingestor/cmd/migrate"
	cmdrun "github.com/jonesrussell/checkpoint-ingestor/cmd/run"
	cmdschedule "github.com/jonesrussell/checkpoint-ingestor/cmd/schedule"
	cmdsources "github.com/jonesrussell/checkpoint-ingestor/cmd/sources"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "checkpoint-ingestor",
		Short: "OVI checkpoint ingestion and reconciliation pipeline",
		Long: `Ingests OVI checkpoint listings from an aggregator table and public
feeds, geocodes them, and reconciles the results into PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// getDeps loads configuration and builds the logger using the global flags.
// Deferred to command run time so flags are parsed first.
func getDeps() (*common.Deps, error) {
	return common.NewCommandDeps(cfgFile, debug)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("checkpoint-ingestor %s\n", version)
		},
	})

	rootCmd.AddCommand(cmdrun.Command(getDeps))
	rootCmd.AddCommand(cmdschedule.Command(getDeps))
	rootCmd.AddCommand(cmdsources.Command(getDeps))
	rootCmd.AddCommand(cmdmigrate.Command(getDeps))
}
