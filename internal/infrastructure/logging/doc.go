// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs are written to stderr by default. Data anomalies in trace input are
// logged at warn level, progress at info and per-record detail at debug.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("reading traces", zap.Int("sources", 4))
//	logger.Warn("skipped record", zap.String("reason", "unknown_kind"))
package logging
