package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"PolicyScanner/internal/app"
	"PolicyScanner/internal/config"
	"PolicyScanner/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "policyscanner",
		Short:         "Collects HR policies from configured sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the admin API",
			RunE: withApp(func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				return a.Serve(ctx)
			}),
		},
		&cobra.Command{
			Use:   "run",
			Short: "Execute one pipeline pass and exit",
			RunE: withApp(func(ctx context.Context, a *app.Application, logger *zap.Logger) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				report, err := a.RunOnce(ctx)
				logger.Info("run complete",
					zap.String("run_id", report.RunID),
					zap.Int("inserted", report.Inserted()),
					zap.Int("duplicates", report.Duplicates()),
					zap.Int("failed_sources", report.Failed()))
				return err
			}),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: withApp(func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				return a.Migrate(ctx)
			}),
		},
	)
	return root
}

func withApp(fn func(context.Context, *app.Application, *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("application init failed", zap.Error(err))
			return err
		}
		defer func() {
			if err := application.Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}()

		if err := fn(cmd.Context(), application, logger); err != nil {
			logger.Error("command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}
