package main

import (
	"fmt"
	"os"

	"ekuphumuleni-api/config"
	_ "ekuphumuleni-api/docs"
	"ekuphumuleni-api/pkg/logger"

	"github.com/spf13/cobra"
)

// @title           Ekuphumuleni Contact API
// @version         1.0
// @description     Contact form relay: validates submissions and delivers them over SMTP.
// @host            localhost:8080
// @BasePath        /api
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ekuphumuleni-api",
		Short: "Ekuphumuleni contact form API",
		Long: `Serves POST /api/contact: validates a contact submission, notifies the
site owner by email and sends the submitter a confirmation.`,
		SilenceUsage: true,
		// Running without a subcommand serves, matching the container entrypoint.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newVerifySMTPCmd(), newValidateCmd())
	return root
}

// bootstrap loads configuration and installs the process logger.
func bootstrap() (*config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	closer, err := logger.Init(logger.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.IsProduction(),
		File:  cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, func() { _ = closer.Close() }, nil
}
