package config

import "fmt"

// ConfigurationError reports a missing or malformed configuration value.
type ConfigurationError struct {
	// Env is the environment variable backing the value.
	Env string
	// Reason describes what is wrong with it.
	Reason string
	// Err is the underlying parse error, if any.
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s %s: %v", e.Env, e.Reason, e.Err)
	}

	return fmt.Sprintf("configuration: %s %s", e.Env, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func missing(env string) error {
	return &ConfigurationError{Env: env, Reason: "is required"}
}

func invalid(env string, err error) error {
	return &ConfigurationError{Env: env, Reason: "is invalid", Err: err}
}
