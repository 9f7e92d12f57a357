// Package logger wraps zap to provide:
//   - a global sugared logger with a console encoder,
//   - an optional size-rotated file sink for long-running desktop processes,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and leveled convenience functions (Infof, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so every log line
// carries the component name and run-scoped fields such as run_id.
package logger
