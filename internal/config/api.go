package config

import (
	"errors"
	"strings"
	"time"
)

// API is the configuration of the release feed management commands.
type API struct {
	APIURL     string        `mapstructure:"api_url"`
	PublishKey string        `mapstructure:"publish_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

//nolint:gochecknoglobals // Immutable binding table.
var apiBindings = []binding{
	{"api_url", EnvAPIURL},
	{"publish_key", EnvPublishKey},
	{"timeout", EnvTimeout},
}

// LoadAPI reads the API settings. The publish key is only required for
// write operations.
func LoadAPI(path string, requireKey bool) (*API, error) {
	cfg := new(API)

	if err := load(path, apiBindings, map[string]any{"timeout": DefaultTimeout}, cfg); err != nil {
		return nil, err
	}

	if err := ValidateAPI(cfg, requireKey); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateAPI checks the API URL and, when requested, the publish key.
func ValidateAPI(a *API, requireKey bool) error {
	var (
		errs []error
		err  error
	)

	if a.APIURL, err = normalizeBaseURL(EnvAPIURL, a.APIURL); err != nil {
		errs = append(errs, err)
	}

	a.PublishKey = strings.TrimSpace(a.PublishKey)
	if requireKey && a.PublishKey == "" {
		errs = append(errs, missing(EnvPublishKey))
	}

	if a.Timeout <= 0 {
		a.Timeout = DefaultTimeout
	}

	return errors.Join(errs...)
}
