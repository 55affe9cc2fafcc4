package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

// Notifier sends one-way messages to the peer.
type Notifier interface {
	Notify(method string, params any) error
}

// MainThreadProxy forwards registry notifications to the main process.
// While unbound, notifications are dropped.
type MainThreadProxy struct {
	mu       sync.RWMutex
	conn     Notifier
	reporter reporting.Reporter
}

// NewMainThreadProxy creates a proxy over conn, which may be nil. Send
// failures go to reporter, or to the process-wide reporter when nil.
func NewMainThreadProxy(conn Notifier, reporter reporting.Reporter) *MainThreadProxy {
	if reporter == nil {
		reporter = reporting.Default()
	}
	return &MainThreadProxy{conn: conn, reporter: reporter}
}

// Bind points the proxy at conn. Bind(nil) detaches it.
func (p *MainThreadProxy) Bind(conn Notifier) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

// RegisterURIHandler announces handle for extensionID.
func (p *MainThreadProxy) RegisterURIHandler(handle int, extensionID string) {
	p.notify(MethodRegisterURIHandler, RegisterParams{Handle: handle, ExtensionID: extensionID})
}

// UnregisterURIHandler retires handle.
func (p *MainThreadProxy) UnregisterURIHandler(handle int) {
	p.notify(MethodUnregisterURIHandler, UnregisterParams{Handle: handle})
}

// A closed connection takes every handle with it on the main side, so
// ErrClosed is not reported.
func (p *MainThreadProxy) notify(method string, params any) {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return
	}
	if err := conn.Notify(method, params); err != nil && !errors.Is(err, ErrClosed) {
		p.reporter.Report(reporting.WithSource(ReporterSource, fmt.Errorf("%s: %w", method, err)))
	}
}

// URIDispatcher receives external URIs by handle.
type URIDispatcher interface {
	HandleExternalURI(ctx context.Context, handle int, components uri.Components) error
}

// ExtHostService serves main process requests on the extension host.
type ExtHostService struct {
	dispatcher URIDispatcher
	logger     *zap.Logger
}

// NewExtHostService creates the extension host side handler.
func NewExtHostService(dispatcher URIDispatcher, logger *zap.Logger) *ExtHostService {
	return &ExtHostService{dispatcher: dispatcher, logger: logging.Or(logger)}
}

// HandleNotification ignores notifications; the main process sends none.
func (s *ExtHostService) HandleNotification(_ context.Context, method string, _ json.RawMessage) {
	s.logger.Debug("Ignoring notification", zap.String("method", method))
}

// HandleRequest serves handleExternalUri.
func (s *ExtHostService) HandleRequest(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodHandleExternalURI:
		var p HandleExternalURIParams
		if err := DecodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.DispatchID != "" {
			ctx = id.WithDispatchID(ctx, id.DispatchID(p.DispatchID))
		}
		return nil, s.dispatcher.HandleExternalURI(ctx, p.Handle, p.URI)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}
