// Package middleware provides the HTTP middleware of the main process.
//
// Middleware stack:
//   - Recovery: panics become 500 responses and go to the unexpected error sink
//   - RequestID: X-Request-ID on every request and response
//   - CORS: cross-origin access for browser-launched deep links
//   - RateLimit: per-IP token bucket on URI intake, idle clients evicted
//
// Example Usage:
//
//	router.Use(middleware.Recovery(reporter), middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.POST("/open", middleware.RateLimit(middleware.DefaultRateLimitConfig()), handlers.Open)
package middleware
