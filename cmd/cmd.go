// Package cmd assembles the kitforge CLI.
package cmd

import (
	"github.com/heroku/color"
	"github.com/spf13/cobra"

	"github.com/kitforge/kitforge/internal/commands"
	"github.com/kitforge/kitforge/pkg/client"
	"github.com/kitforge/kitforge/pkg/logging"
)

// Version is overridden at build time with ldflags.
var Version = "0.0.0"

// ConfigurableLogger defines behavior required by the KitforgeCommand
type ConfigurableLogger interface {
	logging.Logger
	WantTime(f bool)
	WantQuiet(f bool)
	WantVerbose(f bool)
}

// NewKitforgeCommand generates the kitforge root command.
func NewKitforgeCommand(logger ConfigurableLogger) (*cobra.Command, error) {
	cobra.EnableCommandSorting = false

	kitforgeClient := client.NewClient(client.WithLogger(logger))

	rootCmd := &cobra.Command{
		Use:   "kitforge",
		Short: "CLI for resolving and fetching kit dependencies",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if fs := cmd.Flags(); fs != nil {
				if flag, err := fs.GetBool("no-color"); err == nil {
					color.Disable(flag)
				}
				if flag, err := fs.GetBool("quiet"); err == nil {
					logger.WantQuiet(flag)
				}
				if flag, err := fs.GetBool("verbose"); err == nil {
					logger.WantVerbose(flag)
				}
				if flag, err := fs.GetBool("timestamps"); err == nil {
					logger.WantTime(flag)
				}
			}
		},
	}

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	rootCmd.PersistentFlags().Bool("timestamps", false, "Enable timestamps in output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Show less output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show more output")

	commands.AddHelpFlag(rootCmd, "kitforge")

	rootCmd.AddCommand(commands.Update(logger, kitforgeClient))
	rootCmd.AddCommand(commands.Fetch(logger, kitforgeClient))
	rootCmd.AddCommand(commands.Version(logger, Version))

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{.Version}}{{"\n"}}`)
	rootCmd.SetOut(logger.Writer())

	return rootCmd, nil
}
