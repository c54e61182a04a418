package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/ats-job-scout/internal/app"
	"github.com/JakeFAU/ats-job-scout/internal/server"
)

func newServeCmd(rt *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a schedule and expose the HTTP control plane",
		Long: `serve keeps jobscout running: a cron schedule (serve.schedule) triggers
runs, and POST /runs starts one on demand. Only one run executes at a time.
Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer func() { _ = a.Close() }()

			srv, err := server.New(rt.cfg, a, rt.logger)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
