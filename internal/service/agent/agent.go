package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	bridge "github.com/oshokin/release-pipeline/internal/api/grpc/update"
	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/repository/staged"
	"github.com/oshokin/release-pipeline/internal/service/updater"
	"github.com/oshokin/release-pipeline/internal/vercomp"
	"github.com/oshokin/release-pipeline/internal/version"
)

// Options controls the update-agent process.
type Options struct {
	// ConfigPath specifies the path to an optional settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured bridge address.
	ListenAddress string
	// LogFile overrides the configured log file; "-" logs to stdout only.
	LogFile string
}

// stdoutOnly disables the rotated log file.
const stdoutOnly = "-"

// Run loads the agent settings, starts the scheduled checks and serves the
// bridge until ctx is canceled or an installed update asks for a restart.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.LoadAgent(opts.ConfigPath, version.Short())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}

	if cfg.LogFile != stdoutOnly {
		fileLogger, closeLog, logErr := logger.NewWithFile(logger.AtomicLevel(), logger.FileOptions{Path: cfg.LogFile})
		if logErr != nil {
			return fmt.Errorf("open log file %s: %w", cfg.LogFile, logErr)
		}

		defer func() { _ = closeLog() }()

		ctx = logger.ToContext(ctx, fileLogger)
	}

	ctx = logger.WithName(ctx, "update-agent")

	// The installer cancels the agent once a replacement has been launched.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controller, err := newController(ctx, cfg, cancel)
	if err != nil {
		return err
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	logger.InfoKV(ctx, "Update agent listening",
		"listen_address", lis.Addr().String(),
		"app_version", cfg.AppVersion,
		"feed_url", cfg.FeedURL,
		"disabled", controller.Disabled(),
	)

	return Serve(ctx, lis, controller)
}

// newController wires the feed backend, installer and staged update store for cfg.
func newController(ctx context.Context, cfg *config.Agent, restart func()) (*updater.Controller, error) {
	if cfg.Development() {
		return updater.NewController(cfg.AppVersion, nil, updater.WithDisabled(true)), nil
	}

	backend, err := updater.NewFeedBackend(cfg.FeedURL,
		updater.WithFeedHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		updater.WithDownloadHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		}),
		updater.WithDownloadDir(cfg.DownloadDir),
	)
	if err != nil {
		return nil, fmt.Errorf("create update feed: %w", err)
	}

	installer, err := updater.NewInstaller(updater.WithAfterInstall(restart))
	if err != nil {
		return nil, fmt.Errorf("create installer: %w", err)
	}

	store := staged.NewFileRepository(filepath.Join(cfg.DownloadDir, staged.DefaultFilename))

	return updater.NewController(cfg.AppVersion, backend,
		updater.WithSchedule(cfg.CheckDelay, cfg.CheckInterval),
		updater.WithInstaller(installer),
		updater.WithStagedStore(store),
		updater.WithStaged(restoreStaged(ctx, store, cfg.AppVersion)),
	), nil
}

// restoreStaged returns the update downloaded by a previous run when it is
// still newer than current. Anything else found on disk is cleared.
func restoreStaged(ctx context.Context, store *staged.FileRepository, current string) *updater.StagedUpdate {
	update, err := store.Load(ctx)

	switch {
	case errors.Is(err, staged.ErrNotFound):
		return nil
	case err != nil:
		logger.WarnKV(ctx, "Discarding staged update", "record", store.Path(), "error", err)
	case !vercomp.Newer(update.Version, current):
		logger.InfoKV(ctx, "Staged update is already installed", "version", update.Version)
	default:
		logger.InfoKV(ctx, "Restored downloaded update", "version", update.Version, "path", update.Path)

		return update
	}

	if err = store.Clear(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to clear staged update", "error", err)
	}

	return nil
}

// Serve runs controller's schedule and the bridge on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, controller *updater.Controller) error {
	grpcServer := grpc.NewServer()
	bridge.NewServer(controller).Register(grpcServer)

	unsubscribe := controller.Subscribe(func(s updater.Status) {
		logger.InfoKV(ctx, "Update status", "status", s.String())
	})
	defer unsubscribe()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return controller.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down update bridge")
		grpcServer.GracefulStop()

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	err := group.Wait()

	logger.Info(ctx, "Update bridge stopped")

	return err
}
