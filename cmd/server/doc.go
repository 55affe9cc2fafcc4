// Package main is the entry point for the main process.
//
// The main process owns URI routing. Extension hosts connect over a
// WebSocket at /exthost and announce their URI handlers; external URIs
// arrive on POST /open and are delivered to the extension named by the
// URI authority.
//
//	OS / browser → POST /open → main process → extension host → handler
//
// Configuration:
//   - Environment variables (PORT, HOST, MAIN_DISPATCH_TIMEOUT, LOG_LEVEL, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
