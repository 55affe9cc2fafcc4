// Package server assembles the main process.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger, Prometheus registry and the unexpected error sink
//  3. Create the mainthread URL service
//  4. Setup gin routes and middleware
//  5. Serve HTTP and extension host WebSockets
//  6. Graceful shutdown: close extension host connections, then drain HTTP
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.New(cfg)
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
