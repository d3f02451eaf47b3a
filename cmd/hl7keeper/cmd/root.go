package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/hl7keeper/internal/core/config"
	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/spf13/cobra"
)

// Version is the hl7keeper release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "hl7keeper",
	Short:         "hl7keeper HL7 rule set service",
	Long:          `hl7keeper stores declarative rule sets per message profile and classifies JSON-form HL7 messages into PII, warning and error categories.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the logger from the root flags. Logs go to stderr so
// command output on stdout stays machine readable.
func newLogger() (*slog.Logger, error) {
	return config.NewLogger(logLevel, logFormat, os.Stderr)
}

// loadConfig resolves configuration for cmd, letting its flags override
// environment and config file values.
func loadConfig(cmd *cobra.Command) (*config.RulesAPIConfig, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the configured database. When requireSchema is set
// every embedded migration must already be applied.
func openDatabase(ctx context.Context, cmd *cobra.Command, requireSchema bool) (*sqlx.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("--db-url required (or set HK_DATABASE_URL)")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !requireSchema {
		return database, nil
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'hl7keeper migrate up' first", s.ID)
		}
	}
	return database, nil
}
