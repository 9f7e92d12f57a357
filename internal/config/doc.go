// Package config builds the explicit configuration structs used by the
// release tooling and the update agent.
//
// Values are read once at process entry from the environment (bound key by
// key) and an optional YAML file, merged with viper, then validated eagerly so
// that a missing value aborts before any network call. Nothing below the
// command layer reads the environment.
package config
