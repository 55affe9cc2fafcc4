package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultCloseTimeout = 5 * time.Second
	maxMessageSize      = 1 << 20

	// ReporterSource labels transport failures in the unexpected error sink.
	ReporterSource = "rpc"
)

// Handler serves inbound frames. Both methods run on the reader goroutine.
type Handler interface {
	HandleNotification(ctx context.Context, method string, params json.RawMessage)
	HandleRequest(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Option configures a Conn
type Option func(*Conn)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Conn) { c.metrics = m }
}

// WithReporter routes transport failures to r
func WithReporter(r reporting.Reporter) Option {
	return func(c *Conn) { c.reporter = r }
}

// WithWriteTimeout bounds each frame write
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) { c.writeTimeout = d }
}

// Conn is one side of a protocol connection.
type Conn struct {
	id      id.ConnectionID
	ws      *websocket.Conn
	handler Handler

	logger       *zap.Logger
	metrics      *monitoring.Metrics
	reporter     reporting.Reporter
	writeTimeout time.Duration

	mu      sync.Mutex
	queue   [][]byte
	closing bool
	wake    chan struct{}

	nextID    atomic.Uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan *Message

	done     chan struct{}
	shutOnce sync.Once
	err      error
}

// NewConn wraps an established WebSocket and starts its writer.
func NewConn(ws *websocket.Conn, handler Handler, opts ...Option) *Conn {
	c := &Conn{
		id:           id.NewConnectionID(),
		ws:           ws,
		handler:      handler,
		writeTimeout: defaultWriteTimeout,
		wake:         make(chan struct{}, 1),
		pending:      make(map[uint64]chan *Message),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Or(c.logger)
	if c.reporter == nil {
		c.reporter = reporting.Default()
	}
	c.logger = c.logger.With(logging.ConnID(c.id.String()))

	ws.SetReadLimit(maxMessageSize)
	c.metrics.RecordWSConnection(1)

	go c.writeLoop()
	return c
}

// Dial connects to a main process endpoint.
func Dial(ctx context.Context, url string, handler Handler, opts ...Option) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(ws, handler, opts...), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Extension hosts are local processes
	},
}

// Accept upgrades an HTTP request to a protocol connection.
func Accept(w http.ResponseWriter, r *http.Request, handler Handler, opts ...Option) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	return NewConn(ws, handler, opts...), nil
}

// ID returns the connection identifier
func (c *Conn) ID() id.ConnectionID {
	return c.id
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil after a clean close.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Notify queues a one-way message. It never blocks on the network.
func (c *Conn) Notify(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.send(&Message{Type: TypeNotify, Method: method, Params: raw})
}

// Call sends a request and waits for its response. When out is non-nil the
// response params are decoded into it.
func (c *Conn) Call(ctx context.Context, method string, params any, out any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	reqID := c.nextID.Add(1)
	ch := make(chan *Message, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	if err := c.send(&Message{Type: TypeRequest, ID: reqID, Method: method, Params: raw}); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return &RemoteError{Method: method, Message: resp.Error}
		}
		if out != nil && len(resp.Params) > 0 {
			return DecodeParams(resp.Params, out)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Conn) send(msg *Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrClosed
	default:
	}
	c.queue = append(c.queue, data)
	c.mu.Unlock()

	c.metrics.RecordWSMessage("out", messageLabel(msg))
	c.signal()
	return nil
}

func (c *Conn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) takeQueue() ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.queue
	c.queue = nil
	return batch, c.closing
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		batch, closing := c.takeQueue()
		for _, data := range batch {
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown(fmt.Errorf("write failed: %w", err))
				return
			}
		}

		if closing {
			deadline := time.Now().Add(c.writeTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				c.logger.Debug("Close frame not sent", zap.Error(err))
			}
			c.shutdown(nil)
			return
		}
	}
}

// Serve reads frames until the connection ends or ctx is cancelled. It
// returns nil after a clean close.
func (c *Conn) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(nil)
			} else {
				c.shutdown(fmt.Errorf("read failed: %w", err))
			}
			return c.err
		}

		msg, err := decode(data)
		if err != nil {
			c.reporter.Report(reporting.WithSource(ReporterSource, err))
			continue
		}
		c.metrics.RecordWSMessage("in", messageLabel(msg))
		c.dispatch(ctx, msg)
	}
}

func (c *Conn) dispatch(ctx context.Context, msg *Message) {
	switch msg.Type {
	case TypeNotify:
		if err := c.serveNotification(ctx, msg); err != nil {
			c.reporter.Report(reporting.WithSource(ReporterSource, err))
		}
	case TypeRequest:
		c.serveRequest(ctx, msg)
	case TypeResponse:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.logger.Debug("Dropping response for unknown request", zap.Uint64("id", msg.ID))
			return
		}
		select {
		case ch <- msg:
		default:
			c.logger.Debug("Dropping duplicate response", zap.Uint64("id", msg.ID))
		}
	}
}

func (c *Conn) serveNotification(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notification %s: %w", msg.Method, reporting.Recover(p))
		}
	}()
	c.handler.HandleNotification(ctx, msg.Method, msg.Params)
	return nil
}

func (c *Conn) serveRequest(ctx context.Context, msg *Message) {
	result, err := c.callHandler(ctx, msg)

	resp := &Message{Type: TypeResponse, ID: msg.ID}
	if err == nil {
		resp.Params, err = marshalParams(result)
	}
	if err != nil {
		resp.Error = err.Error()
		var pe *reporting.PanicError
		if errors.As(err, &pe) {
			c.reporter.Report(reporting.WithSource(ReporterSource, err))
		}
	}

	if err := c.send(resp); err != nil {
		c.logger.Debug("Response not sent", zap.String("method", msg.Method), zap.Error(err))
	}
}

func (c *Conn) callHandler(ctx context.Context, msg *Message) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("request %s: %w", msg.Method, reporting.Recover(p))
		}
	}()
	return c.handler.HandleRequest(ctx, msg.Method, msg.Params)
}

// Close flushes queued frames, sends a close frame and shuts down.
func (c *Conn) Close() error {
	c.mu.Lock()
	already := c.closing
	c.closing = true
	c.mu.Unlock()

	if !already {
		c.signal()
	}

	select {
	case <-c.done:
	case <-time.After(defaultCloseTimeout):
		c.shutdown(ErrClosed)
	}
	return nil
}

func (c *Conn) shutdown(err error) {
	c.shutOnce.Do(func() {
		c.err = err
		c.ws.Close()
		c.metrics.RecordWSConnection(-1)

		if err != nil {
			c.logger.Warn("Connection closed", zap.Error(err))
		} else {
			c.logger.Debug("Connection closed")
		}
		close(c.done)
	})
}

func messageLabel(msg *Message) string {
	if msg.Method != "" {
		return msg.Method
	}
	return msg.Type
}
