// Package version exposes build metadata for the release tooling and the update agent.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short, Full and UserAgent render them for CLI output, logs and
// outgoing HTTP requests.
package version
