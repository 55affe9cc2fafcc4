package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/mainthread"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/rpc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	svc      *mainthread.Service
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	reporter reporting.Reporter
	started  time.Time

	// Hijacked connections outlive their request context; conns ends them.
	conns      context.Context
	closeConns context.CancelFunc
}

// NewHandlers creates a new handler set
func NewHandlers(svc *mainthread.Service, logger *zap.Logger, metrics *monitoring.Metrics, reporter reporting.Reporter) *Handlers {
	if reporter == nil {
		reporter = reporting.Default()
	}
	conns, closeConns := context.WithCancel(context.Background())
	return &Handlers{
		svc:        svc,
		logger:     logging.Or(logger),
		metrics:    metrics,
		reporter:   reporter,
		started:    time.Now(),
		conns:      conns,
		closeConns: closeConns,
	}
}

// CloseConnections closes every extension host connection.
func (h *Handlers) CloseConnections() {
	h.closeConns()
}

// OpenRequest is the body of POST /open.
type OpenRequest struct {
	URI string `json:"uri" binding:"required"`
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "exthost-main",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"connections": h.svc.Connections(),
		"handlers":    len(h.svc.Handlers()),
	})
}

// ListHandlers lists live URI handler registrations
func (h *Handlers) ListHandlers(c *gin.Context) {
	regs := h.svc.Handlers()
	if regs == nil {
		regs = []mainthread.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{
		"handlers": regs,
		"count":    len(regs),
	})
}

// Open routes an external URI to the extension that owns its authority
func (h *Handlers) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "request body must be {\"uri\": \"...\"}",
		})
		return
	}

	u, err := uri.Parse(req.URI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if u.Authority() == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "uri has no authority naming an extension",
		})
		return
	}

	route, err := h.svc.Open(c.Request.Context(), u)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"route":   route,
		})
	case errors.Is(err, mainthread.ErrNoHandler):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	default:
		h.logger.Warn("URI delivery failed", zap.String("uri", u.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	}
}

// ExtHost upgrades an extension host connection and serves it until it ends
func (h *Handlers) ExtHost(c *gin.Context) {
	sess := h.svc.NewSession()
	conn, err := rpc.Accept(c.Writer, c.Request, sess,
		rpc.WithLogger(h.logger),
		rpc.WithMetrics(h.metrics),
		rpc.WithReporter(h.reporter),
	)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn("Extension host upgrade failed", zap.Error(err))
		return
	}

	sess.Attach(conn)
	defer sess.Detach()

	if err := conn.Serve(h.conns); err != nil {
		h.logger.Warn("Extension host connection ended", logging.ConnID(conn.ID().String()), zap.Error(err))
	}
}
