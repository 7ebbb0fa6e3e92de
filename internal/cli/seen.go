package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/disaster-alert-service/internal/app"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
)

// NewSeenCmd creates the seen subcommand, which prints the persisted
// seen-alert keys per feed.
func NewSeenCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:          "seen",
		Short:        "Print the remembered alert keys per feed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			a := app.Build(cmd.Context(), cfg, logger, deps.Metrics())
			defer func() { _ = a.Close() }()

			return writeJSON(cmd.OutOrStdout(), a.Seen.Snapshot())
		},
	}
}
