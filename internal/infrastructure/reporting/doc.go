// Package reporting is the process-wide sink for unexpected errors.
//
// Failures that must never propagate to a caller, such as a URI handler that
// panics or returns an error after its dispatch was acknowledged, are routed
// here. The sink logs through zap and counts through Prometheus.
//
// Example Usage:
//
//	sink := reporting.NewSink(logger, metrics)
//	reporting.SetDefault(sink)
//	reporting.OnUnexpectedError(err)
package reporting
