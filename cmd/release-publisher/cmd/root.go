package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

// configHelp describes where subcommands read their settings from.
const configHelp = `
Settings come from the environment (` + config.EnvAPIURL + `, ` + config.EnvPublishKey + `, OBJECT_STORE_*)
and may also be supplied as YAML through --config.`

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// logLevel sets the minimum level of printed messages.
	logLevel string

	// rootCmd groups the release management subcommands.
	rootCmd = &cobra.Command{
		Use:          "release-publisher",
		Short:        "Publish desktop builds and manage registered releases.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errInvalidLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the release-publisher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newPublishCommand(), newListCommand(), newRetractCommand())
}
