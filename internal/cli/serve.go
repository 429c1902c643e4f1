package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/app"
)

// NewServeCommand runs the HTTP API.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the guest API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}

			a := app.New(cfg, logger)
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
					logger.WithError(err).Error("Failed to stop dependencies")
				}
			}()

			srv, err := app.NewServer(ctx, a)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
