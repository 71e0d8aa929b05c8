package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/storage/postgres"
)

var (
	migrateDirection string
	migrateSteps     int
	migrationsDir    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the PostgreSQL schema migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDirection, "direction", "up", "migration direction: up or down")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of steps (0 = all)")
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "path to migration SQL files")
}

// runMigrate reads only the database section so it works before the rest of
// the config (auth secret, content) is in place.
func runMigrate(cmd *cobra.Command, _ []string) error {
	start := time.Now()

	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var dbCfg config.DatabaseConfig
	if err := v.Sub("database").Unmarshal(&dbCfg); err != nil {
		return fmt.Errorf("parsing database config: %w", err)
	}

	res, err := postgres.Migrate(dbCfg.DSN(), migrationsDir, migrateDirection, migrateSteps)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	if res.NoChange {
		fmt.Fprintf(cmd.OutOrStdout(), "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, elapsed)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version=%d dirty=%v [%s]\n", migrateDirection, res.Version, res.Dirty, elapsed)
	}
	return nil
}
