package urls

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/lifecycle"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

// ReporterSource labels handler failures in the unexpected error sink.
const ReporterSource = "uri_handler"

type registration struct {
	extensionID string
	handle      int
	handler     Handler
	queue       *serialQueue
}

// Registry maps extension identities to handles and handles to handlers.
type Registry struct {
	proxy    MainThread
	reporter reporting.Reporter
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu         sync.Mutex
	nextHandle int
	extensions map[string]struct{}
	handlers   map[int]*registration

	inflight *inflight
}

// Option configures a Registry
type Option func(*Registry)

// WithReporter routes handler failures to r instead of the process-wide reporter.
func WithReporter(r reporting.Reporter) Option {
	return func(reg *Registry) { reg.reporter = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) Option {
	return func(reg *Registry) { reg.metrics = m }
}

// NewRegistry creates a registry that notifies proxy of handle changes.
func NewRegistry(proxy MainThread, opts ...Option) *Registry {
	r := &Registry{
		proxy:      proxy,
		extensions: make(map[string]struct{}),
		handlers:   make(map[int]*registration),
		inflight:   newInflight(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Or(r.logger)
	if r.reporter == nil {
		r.reporter = reporting.Default()
	}
	return r
}

// Register installs handler for extensionID and returns the disposer that
// removes it. It fails without side effects if extensionID already has an
// active handler.
func (r *Registry) Register(extensionID string, handler Handler) (lifecycle.Disposable, error) {
	if extensionID == "" {
		return nil, ErrEmptyExtensionID
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extensions[extensionID]; exists {
		r.metrics.RecordDuplicate()
		return nil, &DuplicateRegistrationError{ExtensionID: extensionID}
	}

	handle := r.nextHandle
	r.nextHandle++

	r.extensions[extensionID] = struct{}{}
	r.handlers[handle] = &registration{
		extensionID: extensionID,
		handle:      handle,
		handler:     handler,
		queue:       newSerialQueue(r.inflight),
	}

	// Sent under the lock so the main process sees notifications in mutation order.
	r.proxy.RegisterURIHandler(handle, extensionID)

	r.metrics.RecordRegistration()
	r.logger.Debug("URI handler registered",
		logging.ExtensionID(extensionID),
		logging.Handle(handle),
	)

	return lifecycle.ToDisposable(func() {
		r.unregister(extensionID, handle)
	}), nil
}

func (r *Registry) unregister(extensionID string, handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.extensions, extensionID)
	delete(r.handlers, handle)
	r.proxy.UnregisterURIHandler(handle)

	r.metrics.RecordUnregistration()
	r.logger.Debug("URI handler unregistered",
		logging.ExtensionID(extensionID),
		logging.Handle(handle),
	)
}

// HandleExternalURI delivers an external URI to the handler behind handle.
//
// It always returns nil. The handler runs in the background after the
// acknowledgement; a handle that is unknown or already disposed is ignored.
// ctx values are passed to the handler but its cancellation is not.
func (r *Registry) HandleExternalURI(ctx context.Context, handle int, components uri.Components) error {
	r.mu.Lock()
	reg, ok := r.handlers[handle]
	r.mu.Unlock()

	if !ok {
		r.metrics.RecordDispatch(monitoring.OutcomeUnknownHandle)
		r.logger.Debug("Dropping URI for unknown handle", logging.Handle(handle))
		return nil
	}

	u := uri.Revive(components)
	dispatchID, ok := id.DispatchIDFrom(ctx)
	if !ok {
		dispatchID = id.NewDispatchID()
	}
	hctx := withDispatch(context.WithoutCancel(ctx), Dispatch{
		ID:          dispatchID,
		ExtensionID: reg.extensionID,
		Handle:      reg.handle,
	})

	reg.queue.push(func() {
		r.invoke(hctx, reg, u, dispatchID)
	})

	r.metrics.RecordDispatch(monitoring.OutcomeDelivered)
	return nil
}

func (r *Registry) invoke(ctx context.Context, reg *registration, u uri.URI, dispatchID id.DispatchID) {
	timer := monitoring.NewTimer(r.metrics)

	err := callHandler(ctx, reg.handler, u)
	duration := timer.Stop(err)

	if err != nil {
		r.reporter.Report(reporting.WithSource(ReporterSource, &HandlerError{
			ExtensionID: reg.extensionID,
			Handle:      reg.handle,
			DispatchID:  dispatchID,
			Err:         err,
		}))
		return
	}

	r.logger.Debug("URI handled",
		logging.ExtensionID(reg.extensionID),
		logging.Handle(reg.handle),
		logging.DispatchID(dispatchID.String()),
		zap.Duration("duration", duration),
	)
}

func callHandler(ctx context.Context, h Handler, u uri.URI) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = reporting.Recover(p)
		}
	}()
	return h.HandleURI(ctx, u)
}

// Wait blocks until no dispatched handler invocation is queued or running.
// Dispatches may continue to arrive while it waits.
func (r *Registry) Wait() {
	<-r.inflight.wait()
}

// WaitContext is Wait bounded by ctx.
func (r *Registry) WaitContext(ctx context.Context) error {
	select {
	case <-r.inflight.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of active registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// Handles returns the active handles in ascending order.
func (r *Registry) Handles() []int {
	r.mu.Lock()
	handles := make([]int, 0, len(r.handlers))
	for h := range r.handlers {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	sort.Ints(handles)
	return handles
}

// NextHandle returns the handle the next successful registration will receive.
func (r *Registry) NextHandle() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextHandle
}

// IsRegistered reports whether extensionID has an active handler.
func (r *Registry) IsRegistered(extensionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.extensions[extensionID]
	return ok
}
