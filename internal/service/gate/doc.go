// Package gate decides whether the current build version should be released.
//
// The local version is compared with the newest version known to the release
// feed. An unreachable feed counts as "nothing released yet" so that the very
// first release is never blocked. The decision is written as key=value lines
// to the CI output file and echoed to stdout.
package gate
