// Package agent runs the update agent: it owns the update controller of the
// installed app and exposes it to the UI over the loopback gRPC bridge.
package agent
