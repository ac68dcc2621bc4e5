// Package migrate implements the database migration command.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source
	"github.com/spf13/cobra"

	"github.com/jonesrussell/checkpoint-ingestor/cmd/common"
	"github.com/jonesrussell/checkpoint-ingestor/internal/database"
)

// migrationsPath is the relative path to the migrations directory.
const migrationsPath = "file://migrations"

// Command returns the migrate command.
func Command(getDeps func() (*common.Deps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(_ *cobra.Command, args []string) error {
			deps, err := getDeps()
			if err != nil {
				return err
			}

			m, err := migrate.New(migrationsPath, migrateURL(deps.Config.Database))
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			if err := runMigration(m, args[0]); err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}

			fmt.Printf("Migration %s completed\n", args[0])
			return nil
		},
	}

	return cmd
}

// migrateURL builds a PostgreSQL URL from the database config.
func migrateURL(db database.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode,
	)
}

// runMigration applies the migration in the requested direction. A no-op
// migration is not an error.
func runMigration(m *migrate.Migrate, direction string) error {
	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("invalid direction: %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
