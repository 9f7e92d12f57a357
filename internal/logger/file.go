package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotated log file sink.
type FileOptions struct {
	// Path is the log file location; parent directories are created on demand.
	Path string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
	// MaxAgeDays is the retention of rotated files.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
	logDirPermissions = 0o750
)

// NewWithFile creates a logger that writes to stdout and to a rotated file.
// The returned closer flushes and closes the file sink.
func NewWithFile(level zapcore.LevelEnabler, opts FileOptions) (*zap.SugaredLogger, func() error, error) {
	if level == nil {
		level = defaultLevel
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), logDirPermissions); err != nil {
		return nil, nil, err
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = defaultMaxSizeMB
	}

	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultMaxBackups
	}

	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = defaultMaxAgeDays
	}

	//nolint:exhaustruct // LocalTime and friends keep their defaults.
	rotator := &lumberjack.Logger{
		Filename:   filepath.Clean(opts.Path),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(zapcore.CapitalColorLevelEncoder), zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(consoleEncoder(zapcore.CapitalLevelEncoder), zapcore.AddSync(rotator), level),
	)

	l := zap.New(core).Sugar()

	closer := func() error {
		_ = l.Sync()

		return rotator.Close()
	}

	return l, closer, nil
}
