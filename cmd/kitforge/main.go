package main

import (
	"os"

	"github.com/kitforge/kitforge/cmd"
	"github.com/kitforge/kitforge/internal/commands"
	"github.com/kitforge/kitforge/pkg/logging"
)

func main() {
	logger := logging.NewLogWithWriters(os.Stdout, os.Stderr)

	rootCmd, err := cmd.NewKitforgeCommand(logger)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx := commands.CreateCancellableContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
