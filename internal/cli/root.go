// Package cli implements the alertctl commands.
package cli

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/disaster-alert-service/internal/config"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
)

// Deps supplies the process-level resources commands need. Tests replace them.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	Metrics    func() *observability.Metrics
}

// DefaultDeps reads the environment and registers metrics once.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		Metrics:    sync.OnceValue(observability.NewMetrics),
	}
}

// NewRootCmd creates the root alertctl command with all subcommands registered.
func NewRootCmd(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "alertctl",
		Short:         "alertctl - inspect and exercise the disaster alert pipeline",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(NewNormalizeCmd())
	root.AddCommand(NewOnceCmd(deps))
	root.AddCommand(NewSeenCmd(deps))
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
