package exthost

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/exthost/manifest"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/exthost/webhook"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/urls"
)

// LogHandler writes every URI it receives to the log.
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a log handler for extensionID
func NewLogHandler(extensionID string, logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logging.Or(logger).With(logging.ExtensionID(extensionID))}
}

// HandleURI logs u with its dispatch
func (h *LogHandler) HandleURI(ctx context.Context, u uri.URI) error {
	fields := []zap.Field{
		zap.String("uri", u.String()),
		zap.String("path", u.Path()),
		zap.String("query", u.Query()),
	}
	if d, ok := urls.DispatchFromContext(ctx); ok {
		fields = append(fields, logging.DispatchID(d.ID.String()), logging.Handle(d.Handle))
	}
	h.logger.Info("URI received", fields...)
	return nil
}

// HandlerFactory builds the handler for a manifest entry.
type HandlerFactory func(ext manifest.Extension, logger *zap.Logger) (urls.Handler, error)

// DefaultHandlers builds log and webhook handlers.
func DefaultHandlers(ext manifest.Extension, logger *zap.Logger) (urls.Handler, error) {
	switch ext.Handler {
	case manifest.HandlerLog, "":
		return NewLogHandler(ext.ID, logger), nil
	case manifest.HandlerWebhook:
		return webhook.New(ext.ID, webhook.Config{
			URL:       ext.URL,
			Timeout:   ext.TimeoutDuration(),
			Retries:   ext.Retries,
			RateLimit: ext.Rate,
			Headers:   ext.Headers,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown handler %q", manifest.ErrInvalid, ext.Handler)
	}
}
