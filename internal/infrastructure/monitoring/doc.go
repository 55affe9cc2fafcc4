/*
Package monitoring provides Prometheus metrics for both processes.

# Overview

The main process tracks HTTP intake, connected extension hosts and routed
URIs. The extension host tracks registrations, allocated handles,
dispatch outcomes and handler failures.

# Features

- HTTP request metrics (latency, throughput)
- Registration and handle allocation counters
- Dispatch outcome counters and handler latency
- Unexpected error counters by source
- WebSocket connection and message metrics
- Uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics)
	// ... invoke handler ...
	timer.Stop(err)

A nil *Metrics is valid and records nothing.
*/
package monitoring
