// Package webhook delivers external URIs to an HTTP endpoint on behalf of an
// extension.
//
// Each Handler owns a resty client layered on a retryablehttp transport,
// a rate limiter and a circuit breaker:
//   - retryablehttp retries transport errors and 5xx/429 responses with backoff
//   - the limiter paces deliveries per extension
//   - the breaker fails fast while the endpoint keeps returning 5xx
//
// A delivery is a JSON POST:
//
//	{"extension_id": "pub.auth", "uri": "vscode://pub.auth/cb?code=1",
//	 "components": {...}, "dispatch_id": "dsp_..."}
//
// with the dispatch ID repeated in the X-Dispatch-ID header.
package webhook
