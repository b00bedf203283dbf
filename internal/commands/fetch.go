package commands

import (
	"github.com/spf13/cobra"

	"github.com/kitforge/kitforge/pkg/client"
	"github.com/kitforge/kitforge/pkg/logging"
)

// Fetch verifies Kitforge.lock and extracts every locked kit for one
// architecture.
func Fetch(logger logging.Logger, kitforgeClient KitforgeClient) *cobra.Command {
	var (
		projectPath string
		arch        string
	)

	cmd := &cobra.Command{
		Use:     "fetch",
		Args:    cobra.NoArgs,
		Short:   "Fetch and extract locked kit dependencies",
		Example: "kitforge fetch --arch aarch64",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			return kitforgeClient.Fetch(cmd.Context(), client.FetchOptions{
				ProjectPath: projectPath,
				Arch:        arch,
			})
		}),
	}

	cmd.Flags().StringVar(&projectPath, "project-path", "", "Path to Kitforge.toml (defaults to searching parent directories)")
	cmd.Flags().StringVar(&arch, "arch", "x86_64", "Architecture of kit images to fetch")
	AddHelpFlag(cmd, "fetch")
	return cmd
}
