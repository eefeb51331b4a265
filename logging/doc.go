// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) used across the dialog packages. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping go.uber.org/zap
//   - DialogLogger, a slog based logger with component / session context
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	ctrl, err := controller.New(func(o *controller.Options) { o.Logger = logger })
//
// Messages are short dotted event keys ("controller.turn") followed by
// key/value pairs.
package logging
