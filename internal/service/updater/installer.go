package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/logger"
)

const (
	// DefaultFileMode is applied to replaced executables.
	DefaultFileMode os.FileMode = 0o755

	// appImageEnv holds the path of the running AppImage.
	appImageEnv = "APPIMAGE"
)

var (
	errUnsupportedArchive = errors.New("archive type cannot be installed in place")
	errStagedChanged      = errors.New("staged file changed after download")
)

// StartFunc launches a detached process.
type StartFunc func(ctx context.Context, name string, args ...string) error

// InstallerOption configures a ProcessInstaller.
type InstallerOption func(*ProcessInstaller)

// WithTargetPath sets the executable replaced by in-place updates.
func WithTargetPath(path string) InstallerOption {
	return func(i *ProcessInstaller) {
		if path != "" {
			i.targetPath = path
		}
	}
}

// WithProcessNames sets the executables stopped before installing.
func WithProcessNames(names ...string) InstallerOption {
	return func(i *ProcessInstaller) {
		i.processNames = names
	}
}

// WithStarter replaces how installers and the restarted app are launched.
func WithStarter(start StartFunc) InstallerOption {
	return func(i *ProcessInstaller) {
		if start != nil {
			i.start = start
		}
	}
}

// WithTerminator replaces how sibling processes are stopped.
func WithTerminator(terminate func(names []string) error) InstallerOption {
	return func(i *ProcessInstaller) {
		if terminate != nil {
			i.terminate = terminate
		}
	}
}

// WithAfterInstall runs fn once the update was handed over, typically to exit.
func WithAfterInstall(fn func()) InstallerOption {
	return func(i *ProcessInstaller) {
		i.afterInstall = fn
	}
}

// ProcessInstaller stops running instances, applies the staged update and
// starts the new version.
type ProcessInstaller struct {
	targetPath   string
	processNames []string
	start        StartFunc
	terminate    func(names []string) error
	afterInstall func()
}

// NewInstaller creates an installer for the running executable.
func NewInstaller(opts ...InstallerOption) (*ProcessInstaller, error) {
	target := os.Getenv(appImageEnv)
	if target == "" {
		executable, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}

		target = executable
	}

	i := &ProcessInstaller{
		targetPath: target,
		start:      startDetached,
		terminate:  terminateProcessesByName,
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.processNames == nil {
		i.processNames = []string{filepath.Base(i.targetPath)}
	}

	return i, nil
}

// Install applies staged according to its archive type.
func (i *ProcessInstaller) Install(ctx context.Context, staged *StagedUpdate) error {
	checksum, err := FileChecksum(staged.Path)
	if err != nil {
		return fmt.Errorf("verify staged file: %w", err)
	}

	if !bytes.Equal(checksum, staged.Checksum) {
		return fmt.Errorf("%s: %w", staged.Path, errStagedChanged)
	}

	logger.InfoKV(ctx, "Stopping running instances", "processes", i.processNames)

	if err = i.terminate(i.processNames); err != nil {
		return fmt.Errorf("stop running instances: %w", err)
	}

	switch staged.Archive {
	case release.ArchiveExe:
		logger.InfoKV(ctx, "Launching installer", "path", staged.Path)

		if err = i.start(ctx, staged.Path); err != nil {
			return fmt.Errorf("launch installer: %w", err)
		}
	case release.ArchiveAppImage:
		if err = i.replaceExecutable(ctx, staged); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Restarting application", "path", i.targetPath)

		if err = i.start(ctx, i.targetPath); err != nil {
			return fmt.Errorf("restart application: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", errUnsupportedArchive, staged.Archive)
	}

	if i.afterInstall != nil {
		i.afterInstall()
	}

	return nil
}

// replaceExecutable swaps the target file for the staged one using go-update,
// which verifies the checksum and keeps the old file until the swap succeeded.
func (i *ProcessInstaller) replaceExecutable(ctx context.Context, staged *StagedUpdate) error {
	data, err := os.ReadFile(filepath.Clean(staged.Path))
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Applying update", "target", i.targetPath)

	options := goupdate.Options{
		TargetPath: i.targetPath,
		TargetMode: DefaultFileMode,
		Checksum:   staged.Checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	oldFileName := filepath.Join(filepath.Dir(i.targetPath), "."+filepath.Base(i.targetPath)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// startDetached launches name without waiting for it.
func startDetached(ctx context.Context, name string, args ...string) error {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd.exe", append([]string{"/C", "start", "", name}, args...)...).Start()
	}

	return exec.Command(name, args...).Start() //nolint:noctx // The child must outlive ctx.
}

// terminateProcessesByName kills every other process running one of names.
func terminateProcessesByName(names []string) error {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, found := wanted[process.Executable()]; !found {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
