// Package config provides 12-factor configuration for the main process and
// the extension host.
//
// Configuration is loaded from environment variables with defaults. CLI
// flags in cmd/ override individual values.
//
// Configuration Sections:
//   - Server: HTTP listener of the main process
//   - MainThread: main process endpoint and dispatch timeout
//   - ExtHost: extension manifest and dial timeout
//   - Logging: log level and output format
//   - RateLimit: per-IP limiting of URI intake
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - MAIN_ADDR, MAIN_DISPATCH_TIMEOUT
//   - EXTHOST_MANIFEST, EXTHOST_DIAL_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
