package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/service/agent"
	"github.com/oshokin/release-pipeline/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// logFile overrides the rotated log file; "-" disables it.
	logFile string
	// logLevel sets the minimum level of printed messages.
	logLevel string

	// rootCmd represents the base command for running the update agent.
	rootCmd = &cobra.Command{
		Use:   "update-agent [listen-address]",
		Short: "Check, download and install desktop app updates.",
		Long: `Runs next to the desktop app and owns its update lifecycle.

The agent checks the update feed shortly after start and then every hour, but never
downloads or installs on its own. The UI drives it over a loopback gRPC bridge,
which the status, check, download and install subcommands also use.
With APP_ENV=development every trigger is ignored.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errInvalidLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signalContext()
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return agent.Run(ctx, &agent.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				LogFile:       logFile,
			})
		},
	}
)

// Execute runs the update-agent CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", `log file path, "-" to log to stdout only`)

	addBridgeCommands(rootCmd)
}
