package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/api/grpc/update"
	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/service/updater"
)

// agentAddress is the bridge address used by the client subcommands.
//
//nolint:gochecknoglobals // Shared by the bridge subcommands.
var agentAddress string

func addBridgeCommands(root *cobra.Command) {
	commands := []*cobra.Command{
		{
			Use:   "status",
			Short: "Print the app version and the current update status.",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, client *update.Client) error {
				appVersion, err := client.AppVersion(ctx)
				if err != nil {
					return err
				}

				status, err := client.Status(ctx)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(os.Stdout, "app version: %s\nstatus: %s\n", appVersion, status)

				return nil
			}),
		},
		{
			Use:   "check",
			Short: "Check the update feed now.",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, client *update.Client) error {
				status, err := client.Check(ctx)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(os.Stdout, status)

				return nil
			}),
		},
		{
			Use:   "download",
			Short: "Download the available update and print progress.",
			Args:  cobra.NoArgs,
			RunE:  withClient(download),
		},
		{
			Use:   "install",
			Short: "Quit the app and install the downloaded update.",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, client *update.Client) error {
				return client.QuitAndInstall(ctx)
			}),
		},
	}

	for _, command := range commands {
		command.Flags().StringVarP(&agentAddress, "address", "a", config.DefaultListenAddress, "update agent bridge address")
		root.AddCommand(command)
	}
}

// withClient connects to the running agent before calling fn.
func withClient(fn func(ctx context.Context, client *update.Client) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		client, err := update.Dial(ctx, agentAddress)
		if err != nil {
			return err
		}

		defer func() { _ = client.Close() }()

		return fn(ctx, client)
	}
}

// download starts the update and prints every progress step until it finishes.
func download(ctx context.Context, client *update.Client) error {
	watchCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	wg.Go(func() {
		_ = client.Watch(watchCtx, func(s updater.Status) bool {
			if s.Kind == updater.KindDownloading {
				_, _ = fmt.Fprintln(os.Stdout, s)
			}

			return true
		})
	})

	status, err := client.StartUpdate(ctx)

	cancel()
	wg.Wait()

	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(os.Stdout, status)

	return nil
}
