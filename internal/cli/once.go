package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/disaster-alert-service/internal/app"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
	"github.com/couchcryptid/disaster-alert-service/internal/pipeline"
)

type onceOutput struct {
	CycleID  string          `json:"cycle_id"`
	Records  int             `json:"records"`
	Notified int             `json:"notified"`
	Duration string          `json:"duration"`
	Latest   pipeline.Latest `json:"latest"`
}

// NewOnceCmd creates the once subcommand, which runs a single refresh cycle
// with the configured adapters and prints the result.
func NewOnceCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:          "once",
		Short:        "Run one refresh cycle and print the normalized records",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			a := app.Build(cmd.Context(), cfg, logger, deps.Metrics())
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("close resources error", "error", err)
				}
			}()

			report := a.Pipeline.RunCycle(cmd.Context())
			return writeJSON(cmd.OutOrStdout(), onceOutput{
				CycleID:  report.ID,
				Records:  report.Records,
				Notified: report.Notified,
				Duration: report.Duration.String(),
				Latest:   a.Pipeline.Latest(),
			})
		},
	}
}
