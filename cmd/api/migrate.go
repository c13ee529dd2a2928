package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalix/smsverify/internal/config"
	"github.com/signalix/smsverify/internal/db"
	"github.com/signalix/smsverify/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the verification_attempts schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  withDatabase(db.Migrate),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE:  withDatabase(db.MigrateDown),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  withDatabase(db.MigrationStatus),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func withDatabase(fn func(*sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		databaseURL := config.DatabaseURL()
		if databaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		database, err := db.Open(ctx, databaseURL, db.Options{MaxOpenConns: 2, Logger: logging.New("info")})
		if err != nil {
			return err
		}
		defer database.Close()
		return fn(database)
	}
}
