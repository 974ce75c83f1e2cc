// Package log provides structured trace capture for the dispatch protocol.
//
// This package defines the Logger interface and Event types for recording
// what crosses a service binding: Dispatch calls and their results, event
// upcalls delivered to listeners, and registry state changes. It is separate
// from operational logging (slog) - trace capture provides a complete
// machine-readable record for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.TraceLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.TraceLogger, _ = log.NewFileLogger("/var/log/sensorhub/host.slog")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Dispatch: one event per Dispatch call (DispatchEvent)
//   - Event: one event per driver notification (NotifyEvent)
//   - Registry: bindings, groups, callbacks and manager state (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Trace files are a concatenation of CBOR-encoded events. The sensorlog CLI
// provides viewing, filtering and statistics.
package log
