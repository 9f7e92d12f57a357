package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables read by the update agent.
const (
	EnvFeedURL       = "UPDATE_FEED_URL"
	EnvAppVersion    = "APP_VERSION"
	EnvAppEnv        = "APP_ENV"
	EnvAgentListen   = "UPDATE_AGENT_LISTEN"
	EnvAgentLogFile  = "UPDATE_AGENT_LOG_FILE"
	EnvCheckDelay    = "UPDATE_CHECK_DELAY"
	EnvCheckInterval = "UPDATE_CHECK_INTERVAL"
	EnvDownloadDir   = "UPDATE_DOWNLOAD_DIR"
)

const (
	// DevelopmentEnvironment disables the updater entirely.
	DevelopmentEnvironment = "development"
	// DefaultListenAddress is the loopback address of the UI bridge.
	DefaultListenAddress = "127.0.0.1:47631"
	// DefaultCheckDelay is the wait before the first scheduled check.
	DefaultCheckDelay = 5 * time.Second
	// DefaultCheckInterval separates scheduled checks.
	DefaultCheckInterval = time.Hour

	appDirName     = "release-pipeline"
	logFileName    = "update-agent.log"
	downloadDirSub = "pending-update"
)

// Agent is the validated configuration of the update agent.
type Agent struct {
	// FeedURL is the generic update feed base, always ending with "/".
	FeedURL       string        `mapstructure:"feed_url"`
	AppVersion    string        `mapstructure:"app_version"`
	Environment   string        `mapstructure:"environment"`
	ListenAddress string        `mapstructure:"listen_address"`
	LogFile       string        `mapstructure:"log_file"`
	CheckDelay    time.Duration `mapstructure:"check_delay"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	DownloadDir   string        `mapstructure:"download_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

//nolint:gochecknoglobals // Immutable binding table.
var agentBindings = []binding{
	{"feed_url", EnvFeedURL},
	{"app_version", EnvAppVersion},
	{"environment", EnvAppEnv},
	{"listen_address", EnvAgentListen},
	{"log_file", EnvAgentLogFile},
	{"check_delay", EnvCheckDelay},
	{"check_interval", EnvCheckInterval},
	{"download_dir", EnvDownloadDir},
	{"timeout", EnvTimeout},
}

// LoadAgent reads and validates the update agent configuration.
// fallbackVersion is used when APP_VERSION is not set.
func LoadAgent(path, fallbackVersion string) (*Agent, error) {
	cfg := new(Agent)

	defaults := map[string]any{
		"listen_address": DefaultListenAddress,
		"check_delay":    DefaultCheckDelay,
		"check_interval": DefaultCheckInterval,
		"timeout":        DefaultTimeout,
	}

	if err := load(path, agentBindings, defaults, cfg); err != nil {
		return nil, err
	}

	if cfg.AppVersion == "" {
		cfg.AppVersion = fallbackVersion
	}

	if err := ValidateAgent(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Development reports whether the updater must stay disabled.
func (a *Agent) Development() bool {
	return strings.EqualFold(strings.TrimSpace(a.Environment), DevelopmentEnvironment)
}

// ValidateAgent normalizes the feed URL and fills defaults.
// The feed URL is optional in development mode.
func ValidateAgent(a *Agent) error {
	if a.FeedURL != "" || !a.Development() {
		feed, err := normalizeBaseURL(EnvFeedURL, a.FeedURL)
		if err != nil {
			return err
		}

		a.FeedURL = feed + "/"
	}

	if a.AppVersion == "" {
		return missing(EnvAppVersion)
	}

	if a.ListenAddress == "" {
		a.ListenAddress = DefaultListenAddress
	}

	if _, _, err := net.SplitHostPort(a.ListenAddress); err != nil {
		return invalid(EnvAgentListen, err)
	}

	if a.CheckDelay <= 0 {
		a.CheckDelay = DefaultCheckDelay
	}

	if a.CheckInterval <= 0 {
		a.CheckInterval = DefaultCheckInterval
	}

	if a.Timeout <= 0 {
		a.Timeout = DefaultTimeout
	}

	if a.LogFile == "" {
		a.LogFile = filepath.Join(userDataDir(), logFileName)
	}

	if a.DownloadDir == "" {
		a.DownloadDir = filepath.Join(userDataDir(), downloadDirSub)
	}

	return nil
}

// userDataDir returns the per-user application data directory.
func userDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}

	return filepath.Join(base, appDirName)
}
