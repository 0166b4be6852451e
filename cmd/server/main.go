package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/config"
	"github.com/remote-agent-terminal/shellbridge/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "shellbridge",
		Short:        "shellbridge - interactive project shells over WebSocket",
		Long:         "Serves one pseudo-terminal shell per WebSocket connection, rooted in a registered project directory.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		serveCmd(),
		projectsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
// Logs go to outputs, or stdout when none are given.
func setup(outputs ...string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
