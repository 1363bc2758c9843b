package main

import (
	"fmt"
	"os"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-coursebook/cmd"
	"github.com/mattsolo1/grove-coursebook/cmd/config"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
)

var (
	svc    *service.Service
	logger *logrus.Logger
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"cb",
		"Browse, search and run the notebooks of a course",
	)
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// This runs once before any subcommand
		config.InitConfig()
		logger = config.NewLogger()

		if cmd.Name() == "version" {
			return nil
		}

		s, err := service.New(config.ServiceConfig(), logrus.NewEntry(logger))
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}
		svc = s
		return nil
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewTreeCmd(&svc))
	rootCmd.AddCommand(cmd.NewSearchCmd(&svc))
	rootCmd.AddCommand(cmd.NewIndexCmd(&svc))
	rootCmd.AddCommand(cmd.NewNotebookCmd(&svc))
	rootCmd.AddCommand(cmd.NewDataCmd(&svc))
	rootCmd.AddCommand(cmd.NewDownloadCmd(&svc))
	rootCmd.AddCommand(cmd.NewServeCmd(&svc, &logger, config.ListenAddr))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	err := rootCmd.Execute()
	if svc != nil {
		if cerr := svc.Close(); cerr != nil && logger != nil {
			logger.WithError(cerr).Warn("Failed to close service")
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
