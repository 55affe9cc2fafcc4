package urls

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

// Handler receives external URIs for one extension.
//
// A returned error and a panic are treated alike: both are reported to the
// unexpected error sink and neither reaches the main process.
type Handler interface {
	HandleURI(ctx context.Context, u uri.URI) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, u uri.URI) error

// HandleURI calls f.
func (f HandlerFunc) HandleURI(ctx context.Context, u uri.URI) error {
	return f(ctx, u)
}

// MainThread is the privileged process that owns OS-level scheme registration.
//
// Both calls are one-way notifications. Implementations must not block and
// must not call back into the Registry.
type MainThread interface {
	RegisterURIHandler(handle int, extensionID string)
	UnregisterURIHandler(handle int)
}

// Dispatch describes the delivery a handler is serving.
type Dispatch struct {
	ID          id.DispatchID
	ExtensionID string
	Handle      int
}

type dispatchKey struct{}

func withDispatch(ctx context.Context, d Dispatch) context.Context {
	return context.WithValue(ctx, dispatchKey{}, d)
}

// DispatchFromContext returns the delivery carried by a handler's context.
func DispatchFromContext(ctx context.Context) (Dispatch, bool) {
	d, ok := ctx.Value(dispatchKey{}).(Dispatch)
	return d, ok
}
