/*
Package log provides structured logging for cook using zerolog.

The log package wraps the zerolog library to provide structured logging
(console format by default, JSON when Config.JSONOutput is set) with
component-specific loggers and configurable log levels. Logs are written
to stderr so that the event stream on stdout stays machine-readable.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Log Levels:
  - Debug: per-command remote execution detail (--verbose)
  - Info: run progress
  - Warn: recoverable oddities
  - Error: host-scoped and run-scoped failures

Context Loggers:
  - WithComponent: add component name to all logs
  - WithHost: add target host context
  - WithRule: add rule kind and identifier context

# Usage

	log.Init(log.Config{Level: log.DebugLevel})

	logger := log.WithHost("deploy@web-1")
	logger.Debug().Str("cmd", "sha256sum /etc/hello").Msg("run")
*/
package log
