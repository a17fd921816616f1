package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S1riyS/drive-core/server/internal/app"
	"github.com/S1riyS/drive-core/server/internal/config"
	"github.com/S1riyS/drive-core/server/internal/middleware"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "drive",
		Short:         "File storage service with versions, sharing and quotas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE:  runMigrate,
	})

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute recorded storage usage from live file sizes",
		RunE:  runReconcile,
	}
	reconcileCmd.Flags().String("user", "", "reconcile a single user instead of everyone")
	rootCmd.AddCommand(reconcileCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE:  runToken,
	}
	tokenCmd.Flags().String("user", "", "user id to put in the token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the root logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty, os.Stdout)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.MakeContextWithLogger(ctx, logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return a.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cfg.Metadata.Backend != config.MetadataBackendPostgres {
		return fmt.Errorf("migrate needs the postgres metadata backend, got %q", cfg.Metadata.Backend)
	}

	ctx := logging.MakeContextWithLogger(cmd.Context(), logger)
	pool, err := postgresql.NewClient(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgresql.ApplySchema(ctx, pool, repository.Schema)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")

	ctx := logging.MakeContextWithLogger(cmd.Context(), logger)
	ctx = logging.MakeContextWithNewRequestID(ctx)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if userID != "" {
		drift, err := a.Service().ReconcileQuota(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", userID, drift)
		return nil
	}

	corrections, err := a.Reconciler().RunNow(ctx)
	if err != nil {
		return err
	}
	for _, c := range corrections {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", c.UserID, c.Drift)
	}
	logger.Info("Reconciliation finished", slog.Int("corrected_users", len(corrections)))
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
