package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/app"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/database"
)

// NewMigrateCommand applies the postgres document store migrations.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != "postgres" {
				return errors.New("migrate requires STORE_DRIVER=postgres")
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}

			conn, err := database.Open(cmd.Context(), app.DatabaseConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			return app.Migrations(cfg, logger).Migrate(conn)
		},
	}
}
