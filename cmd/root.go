// Package cmd defines and implements the CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/api"
	"github.com/JakeFAU/insider-filings-crawler/internal/app"
	"github.com/JakeFAU/insider-filings-crawler/internal/checkpoint"
	"github.com/JakeFAU/insider-filings-crawler/internal/config"
	"github.com/JakeFAU/insider-filings-crawler/internal/logging"
	"github.com/JakeFAU/insider-filings-crawler/internal/scheduler"
	"github.com/JakeFAU/insider-filings-crawler/internal/store/postgres"
)

// envKeyType keys the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what PersistentPreRunE prepares for subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// App defines what commands need from the service container, so tests can inject
// a fake.
type App interface {
	Close()
	Crawler(ctx context.Context, opts app.CrawlOptions) (*scheduler.Scheduler, error)
	Checkpoints() *checkpoint.Store
	ReadyChecks() map[string]api.Check
	Store(ctx context.Context) (*postgres.Store, error)
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "insider-filings-crawler",
		Short: "Harvests insider transactions from EDGAR ownership filings.",
		Long: `insider-filings-crawler follows the EDGAR daily master index, downloads
Form 4 ownership documents, extracts their non-derivative transactions and
stores them in Postgres, checkpointing every day along the way.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the INSIDER_ prefix")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newExtractCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
