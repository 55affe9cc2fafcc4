package mainthread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/rpc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

const defaultDispatchTimeout = 5 * time.Second

// ErrNoHandler is returned when no extension claims a URI.
var ErrNoHandler = errors.New("no handler registered for uri")

// Caller issues requests to an extension host.
type Caller interface {
	ID() id.ConnectionID
	Call(ctx context.Context, method string, params any, out any) error
}

// Registration is one live handle as seen by the main process.
type Registration struct {
	ExtensionID  string          `json:"extension_id"`
	Handle       int             `json:"handle"`
	ConnectionID id.ConnectionID `json:"connection_id"`
}

// Route describes where an opened URI was delivered.
type Route struct {
	Registration
	DispatchID id.DispatchID `json:"dispatch_id"`
	URI        string        `json:"uri"`
}

// Service tracks extension host sessions and routes URIs to them.
type Service struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[id.ConnectionID]*Session
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDispatchTimeout bounds the wait for an extension host acknowledgement
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates an empty service
func NewService(opts ...Option) *Service {
	s := &Service{
		timeout:  defaultDispatchTimeout,
		sessions: make(map[id.ConnectionID]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger)
	return s
}

// NewSession creates a session to be bound to a connection with Attach.
func (s *Service) NewSession() *Session {
	return &Session{
		svc:      s,
		handlers: make(map[int]string),
	}
}

func (s *Service) add(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.conn.ID()] = sess
	s.mu.Unlock()

	s.logger.Info("Extension host attached", logging.ConnID(sess.conn.ID().String()))
}

func (s *Service) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.conn.ID())
	s.mu.Unlock()

	s.logger.Info("Extension host detached", logging.ConnID(sess.conn.ID().String()))
}

// Connections returns the number of attached extension hosts.
func (s *Service) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Handlers returns every live registration across sessions.
func (s *Service) Handlers() []Registration {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var out []Registration
	for _, sess := range sessions {
		out = append(out, sess.registrations()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectionID != out[j].ConnectionID {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// Lookup finds the registration claiming extensionID.
func (s *Service) Lookup(extensionID string) (Registration, *Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best     Registration
		bestSess *Session
		found    bool
	)
	for _, sess := range s.sessions {
		for _, reg := range sess.registrations() {
			if !strings.EqualFold(reg.ExtensionID, extensionID) {
				continue
			}
			if !found || reg.ConnectionID < best.ConnectionID {
				best, bestSess, found = reg, sess, true
			}
		}
	}
	return best, bestSess, found
}

// Open routes u to the extension named by its authority and waits for the
// extension host to acknowledge it.
func (s *Service) Open(ctx context.Context, u uri.URI) (Route, error) {
	reg, sess, ok := s.Lookup(u.Authority())
	if !ok {
		s.metrics.RecordDispatch(monitoring.OutcomeNoHandler)
		return Route{}, fmt.Errorf("%w: %s", ErrNoHandler, u.String())
	}

	route := Route{
		Registration: reg,
		DispatchID:   id.NewDispatchID(),
		URI:          u.String(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := rpc.HandleExternalURIParams{
		Handle:     reg.Handle,
		URI:        u.ToComponents(),
		DispatchID: route.DispatchID.String(),
	}
	if err := sess.conn.Call(ctx, rpc.MethodHandleExternalURI, params, nil); err != nil {
		s.metrics.RecordDispatch(monitoring.OutcomeFailed)
		return route, fmt.Errorf("failed to deliver uri to %s: %w", reg.ExtensionID, err)
	}

	s.metrics.RecordDispatch(monitoring.OutcomeRouted)
	s.logger.Info("URI routed",
		logging.ExtensionID(reg.ExtensionID),
		logging.Handle(reg.Handle),
		logging.DispatchID(route.DispatchID.String()),
		logging.ConnID(reg.ConnectionID.String()),
	)
	return route, nil
}

// Session holds the handles announced by one extension host.
type Session struct {
	svc  *Service
	conn Caller

	mu       sync.Mutex
	handlers map[int]string
}

// Attach binds the session to its connection and makes it routable.
func (sess *Session) Attach(conn Caller) {
	sess.conn = conn
	sess.svc.add(sess)
}

// Detach removes the session and forgets its handles.
func (sess *Session) Detach() {
	if sess.conn == nil {
		return
	}
	sess.svc.remove(sess)

	sess.mu.Lock()
	sess.handlers = make(map[int]string)
	sess.mu.Unlock()
}

func (sess *Session) registrations() []Registration {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]Registration, 0, len(sess.handlers))
	for handle, ext := range sess.handlers {
		out = append(out, Registration{ExtensionID: ext, Handle: handle, ConnectionID: sess.conn.ID()})
	}
	return out
}

// HandleNotification applies register and unregister notifications.
func (sess *Session) HandleNotification(_ context.Context, method string, params json.RawMessage) {
	logger := sess.svc.logger
	switch method {
	case rpc.MethodRegisterURIHandler:
		var p rpc.RegisterParams
		if err := rpc.DecodeParams(params, &p); err != nil {
			logger.Warn("Invalid register notification", zap.Error(err))
			return
		}
		sess.mu.Lock()
		sess.handlers[p.Handle] = p.ExtensionID
		sess.mu.Unlock()
		logger.Info("URI handler registered",
			logging.ExtensionID(p.ExtensionID),
			logging.Handle(p.Handle),
		)
	case rpc.MethodUnregisterURIHandler:
		var p rpc.UnregisterParams
		if err := rpc.DecodeParams(params, &p); err != nil {
			logger.Warn("Invalid unregister notification", zap.Error(err))
			return
		}
		sess.mu.Lock()
		delete(sess.handlers, p.Handle)
		sess.mu.Unlock()
		logger.Info("URI handler unregistered", logging.Handle(p.Handle))
	default:
		logger.Debug("Ignoring notification", zap.String("method", method))
	}
}

// HandleRequest rejects every request; extension hosts only notify.
func (sess *Session) HandleRequest(_ context.Context, method string, _ json.RawMessage) (any, error) {
	return nil, fmt.Errorf("%w: %s", rpc.ErrUnknownMethod, method)
}
