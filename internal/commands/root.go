// Package commands implements the CLI of the cancel-workflow binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwsmith1983/cancel-workflow/internal/config"
	"github.com/dwsmith1983/cancel-workflow/internal/provider"
	"github.com/dwsmith1983/cancel-workflow/internal/provider/ghapi"
	"github.com/dwsmith1983/cancel-workflow/internal/trigger"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// ControlPlaneFactory builds the API client for one invocation.
type ControlPlaneFactory func(cfg *types.Config, tc trigger.Context, logger *slog.Logger) (provider.ControlPlane, error)

// NewRootCmd creates the command tree. Running the root command cancels
// superseded runs; "plan" only reports them.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, newGitHubControlPlane)
}

func newRootCmd(version string, factory ControlPlaneFactory) *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "cancel-workflow",
		Short: "Cancel superseded GitHub Actions workflow runs",
		Long: `cancel-workflow cancels the runs of a workflow that were queued before the
current run for the same branch, so only the newest commit keeps building.
Options are read from action inputs (INPUT_*), flags or a YAML file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCancel(cmd, v, factory, false)
		},
	}
	cobra.CheckErr(config.RegisterFlags(v, root.PersistentFlags()))

	root.AddCommand(newPlanCmd(v, factory))
	return root
}

func newPlanCmd(v *viper.Viper, factory ControlPlaneFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show which runs would be cancelled without cancelling them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCancel(cmd, v, factory, true)
		},
	}
}

func newGitHubControlPlane(cfg *types.Config, tc trigger.Context, logger *slog.Logger) (provider.ControlPlane, error) {
	return ghapi.New(cfg.AccessToken, tc.Owner, tc.Repo,
		ghapi.WithBaseURL(cfg.APIURL),
		ghapi.WithBreakerThreshold(cfg.BreakerThreshold),
		ghapi.WithLogger(logger),
	)
}
