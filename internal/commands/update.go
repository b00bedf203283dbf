package commands

import (
	"github.com/spf13/cobra"

	"github.com/kitforge/kitforge/pkg/client"
	"github.com/kitforge/kitforge/pkg/logging"
)

// Update resolves the project's kit dependencies and writes Kitforge.lock.
func Update(logger logging.Logger, kitforgeClient KitforgeClient) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:     "update",
		Args:    cobra.NoArgs,
		Short:   "Resolve kit dependencies and write Kitforge.lock",
		Example: "kitforge update",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			_, err := kitforgeClient.Update(cmd.Context(), client.UpdateOptions{
				ProjectPath: projectPath,
			})
			if err != nil {
				return err
			}
			logger.Info("Lock file is up to date")
			return nil
		}),
	}

	cmd.Flags().StringVar(&projectPath, "project-path", "", "Path to Kitforge.toml (defaults to searching parent directories)")
	AddHelpFlag(cmd, "update")
	return cmd
}
