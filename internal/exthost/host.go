package exthost

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/exthost/manifest"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/rpc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/lifecycle"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/urls"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultShutdownGrace = 5 * time.Second
)

// Config holds extension host settings.
type Config struct {
	MainAddr       string // ws:// URL of the main process endpoint
	DialTimeout    time.Duration
	ReconnectDelay time.Duration // zero disables reconnecting
	ShutdownGrace  time.Duration // bound on waiting for in-flight handlers
}

// Option configures a Host
type Option func(*Host)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

// WithReporter routes handler and transport failures to r
func WithReporter(r reporting.Reporter) Option {
	return func(h *Host) { h.reporter = r }
}

// WithHandlerFactory replaces the log/webhook handler construction.
func WithHandlerFactory(f HandlerFactory) Option {
	return func(h *Host) { h.factory = f }
}

// WithBreaker replaces the dial circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(h *Host) { h.breaker = b }
}

// Host is one extension host process. Its registry lives as long as the
// host, so handles keep increasing across reconnects.
type Host struct {
	cfg        Config
	extensions []manifest.Extension
	proxy      *rpc.MainThreadProxy
	registry   *urls.Registry

	logger   *zap.Logger
	metrics  *monitoring.Metrics
	reporter reporting.Reporter
	factory  HandlerFactory
	breaker  *resilience.Breaker
}

// New creates a host for the extensions in m.
func New(cfg Config, m *manifest.Manifest, opts ...Option) *Host {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}

	h := &Host{cfg: cfg, factory: DefaultHandlers}
	if m != nil {
		h.extensions = m.Extensions
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.Or(h.logger)
	if h.reporter == nil {
		h.reporter = reporting.Default()
	}
	h.proxy = rpc.NewMainThreadProxy(nil, h.reporter)
	h.registry = urls.NewRegistry(h.proxy,
		urls.WithLogger(h.logger),
		urls.WithMetrics(h.metrics),
		urls.WithReporter(h.reporter),
	)
	if h.breaker == nil {
		h.breaker = resilience.New("main-dial", resilience.Settings{
			Cooldown: 5 * time.Second,
			Trip:     resilience.ConsecutiveFailures(3),
			OnStateChange: func(name string, from, to resilience.State) {
				h.logger.Warn("Dial breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	return h
}

// Run serves until ctx is cancelled, reconnecting after connection loss
// when Config.ReconnectDelay is set. It returns nil on cancellation.
func (h *Host) Run(ctx context.Context) error {
	for {
		err := h.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if h.cfg.ReconnectDelay <= 0 {
			return err
		}

		h.logger.Warn("Main process connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", h.cfg.ReconnectDelay),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(h.cfg.ReconnectDelay):
		}
	}
}

// RunOnce runs a single connection. It returns nil when ctx is cancelled or
// the main process closes the connection cleanly. It must not be called
// concurrently on the same Host.
func (h *Host) RunOnce(ctx context.Context) error {
	conn, err := h.dial(ctx, rpc.NewExtHostService(h.registry, h.logger))
	if err != nil {
		return err
	}
	logger := h.logger.With(logging.ConnID(conn.ID().String()))

	h.proxy.Bind(conn)
	defer h.proxy.Bind(nil)

	var store lifecycle.Store
	for _, ext := range h.extensions {
		d, err := h.install(ext, logger)
		if err != nil {
			store.Dispose()
			conn.Close()
			return err
		}
		store.Add(d)
	}
	logger.Info("Extension host ready",
		zap.Int("extensions", store.Len()),
		zap.Int("next_handle", h.registry.NextHandle()),
	)

	served := make(chan error, 1)
	go func() { served <- conn.Serve(context.Background()) }()

	select {
	case <-ctx.Done():
		store.Dispose()
		h.drain(logger)
		conn.Close()
		<-served
		return nil
	case err := <-served:
		store.Dispose()
		h.drain(logger)
		return err
	}
}

// Registry returns the host's URI handler registry.
func (h *Host) Registry() *urls.Registry {
	return h.registry
}

func (h *Host) dial(ctx context.Context, handler rpc.Handler) (*rpc.Conn, error) {
	var conn *rpc.Conn
	err := h.breaker.Do(ctx, func(ctx context.Context) error {
		dctx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
		defer cancel()

		var err error
		conn, err = rpc.Dial(dctx, h.cfg.MainAddr, handler,
			rpc.WithLogger(h.logger),
			rpc.WithMetrics(h.metrics),
			rpc.WithReporter(h.reporter),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to main process: %w", err)
	}
	return conn, nil
}

func (h *Host) install(ext manifest.Extension, logger *zap.Logger) (lifecycle.Disposable, error) {
	handler, err := h.factory(ext, logger)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", ext.ID, err)
	}
	d, err := h.registry.Register(ext.ID, handler)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", ext.ID, err)
	}
	logger.Info("URI handler installed",
		logging.ExtensionID(ext.ID),
		zap.String("handler", ext.Handler),
	)
	return d, nil
}

func (h *Host) drain(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownGrace)
	defer cancel()
	if err := h.registry.WaitContext(ctx); err != nil {
		logger.Warn("Handlers still running at shutdown", zap.Duration("grace", h.cfg.ShutdownGrace))
	}
}
