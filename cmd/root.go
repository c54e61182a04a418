// Package cmd defines the CLI commands for the jobscout executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/app"
	"github.com/JakeFAU/ats-job-scout/internal/config"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

const metricsPushTimeout = 10 * time.Second

// settings carries what every command needs after configuration is loaded.
type settings struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		rt      settings
	)

	cmd := &cobra.Command{
		Use:   "jobscout [intent...]",
		Short: "Discover open ATS job postings and enrich them with company contacts.",
		Long: `jobscout searches the web and public ATS board APIs for postings on
Lever, Ashby, Greenhouse and SmartRecruiters, drops closed or duplicate
postings, resolves each company's website and contacts, and appends new
records to a master CSV. The positional arguments form the search intent.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.HasParent() {
				if intent := strings.TrimSpace(strings.Join(args, " ")); intent != "" {
					cfg.Search.Intent = intent
				}
			}
			logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			rt = settings{cfg: cfg, logger: logger}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), cmd, rt)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newServeCmd(&rt))
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, rt settings) error {
	a, err := app.New(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() { _ = a.Close() }()

	report, runErr := a.Runner().Run(ctx, rt.cfg.Search.Intent)
	if report.RunID != "" {
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
	defer cancel()
	if err := a.PushMetrics(pushCtx); err != nil {
		rt.logger.Warn("metrics push failed", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context, so an interrupted run stops before it commits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobscout:", err)
		os.Exit(1)
	}
}
