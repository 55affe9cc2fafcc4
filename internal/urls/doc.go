// Package urls is the extension-host side of the URI handler protocol.
//
// An extension registers a Handler under its identity. The Registry hands
// out an integer handle, remembers handle → handler, and tells the main
// process that the handle is live. When the OS opens a deep link the main
// process calls HandleExternalURI with that handle; the registry revives the
// URI and runs the handler in the background, acknowledging immediately.
//
// Rules:
//   - One active registration per extension identity
//   - Handles come from a counter owned by the Registry, start at 0, never repeat
//   - A failed registration allocates nothing and sends nothing
//   - Unknown handles are acknowledged silently
//   - Handler failures go to the unexpected error sink, never to the caller
//   - Dispatches to one handle run in arrival order
//
// Example Usage:
//
//	registry := urls.NewRegistry(proxy, urls.WithLogger(logger))
//	disposable, err := registry.Register("pub.ext", urls.HandlerFunc(
//		func(ctx context.Context, u uri.URI) error {
//			return open(u)
//		}))
//	defer disposable.Dispose()
package urls
