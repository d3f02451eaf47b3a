package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/solatis/hl7keeper/internal/core/api"
	"github.com/solatis/hl7keeper/internal/core/auth"
	"github.com/solatis/hl7keeper/internal/core/config"
	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/solatis/hl7keeper/internal/core/server"
	"github.com/solatis/hl7keeper/internal/core/store"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rules API service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := openDatabase(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set HK_HMAC_SECRET environment variable)")
	}
	authenticator := auth.NewAuthenticator(secrets, queries, logger)

	sqlStore, err := store.NewSQLStore(database)
	if err != nil {
		return fmt.Errorf("failed to create rule store: %w", err)
	}
	var ruleStore store.RuleStore = sqlStore
	if cfg.CacheEnabled {
		ruleStore = store.NewCache(sqlStore, logger)
	}

	service, err := api.NewRulesAPIService(rules.NewEngine(), ruleStore, logger, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting hl7keeper rules API", "version", Version, "addr", cfg.Addr(), "cache", cfg.CacheEnabled)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
		if cache, ok := ruleStore.(*store.Cache); ok {
			stats := cache.Stats()
			logger.Info("rule cache stats", "entries", stats.Entries, "hits", stats.Hits, "misses", stats.Misses)
		}
		return grpcServer.Shutdown(context.Background())
	}
}
