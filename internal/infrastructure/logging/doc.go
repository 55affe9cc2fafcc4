// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: colored console output at debug level
//
// Components take a *zap.Logger and attach correlation fields from this
// package's helpers (extension_id, handle, dispatch_id, conn_id) so log lines
// from both processes can be joined.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Handler registered", logging.ExtensionID("pub.ext"), logging.Handle(0))
package logging
