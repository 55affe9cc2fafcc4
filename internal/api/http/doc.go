// Package http exposes the main process over HTTP with gin.
//
// Routes:
//   - GET  /          service banner
//   - GET  /health    liveness plus connection and handler counts
//   - GET  /handlers  live URI handler registrations
//   - POST /open      route an external URI {"uri": "scheme://ext.id/path"}
//   - GET  /exthost   WebSocket endpoint for extension hosts
//   - GET  /metrics   Prometheus exposition (wired by the server package)
package http
