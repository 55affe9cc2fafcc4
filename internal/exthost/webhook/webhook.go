package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/urls"
)

// Request headers set on every delivery
const (
	HeaderDispatchID  = "X-Dispatch-ID"
	HeaderExtensionID = "X-Extension-ID"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "AgentOS-ExtHost/1.0"
)

// ErrDelivery matches every failed delivery, transport or status.
var ErrDelivery = errors.New("webhook delivery failed")

// StatusError is a non-2xx response from the endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error { return ErrDelivery }

// Config describes one endpoint.
type Config struct {
	URL          string
	Timeout      time.Duration // per attempt
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // deliveries per second, 0 is unlimited
	Headers      map[string]string
	Breaker      resilience.Settings
}

// Payload is the request body.
type Payload struct {
	ExtensionID string         `json:"extension_id"`
	URI         string         `json:"uri"`
	Components  uri.Components `json:"components"`
	DispatchID  string         `json:"dispatch_id,omitempty"`
}

// Handler posts URIs for one extension. It implements urls.Handler.
type Handler struct {
	extensionID string
	url         string
	client      *resty.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	logger      *zap.Logger
}

// New creates a webhook handler for extensionID.
func New(extensionID string, cfg Config, logger *zap.Logger) *Handler {
	logger = logging.Or(logger).With(logging.ExtensionID(extensionID))

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetHeader("User-Agent", userAgent).
		SetHeader(HeaderExtensionID, extensionID).
		SetHeaders(cfg.Headers).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	settings := cfg.Breaker
	if settings.IsFailure == nil {
		settings.IsFailure = isEndpointFailure
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("Webhook breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}

	return &Handler{
		extensionID: extensionID,
		url:         cfg.URL,
		client:      client,
		limiter:     limiter,
		breaker:     resilience.New("webhook:"+extensionID, settings),
		logger:      logger,
	}
}

// HandleURI posts u to the endpoint.
func (h *Handler) HandleURI(ctx context.Context, u uri.URI) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	payload := Payload{
		ExtensionID: h.extensionID,
		URI:         u.String(),
		Components:  u.ToComponents(),
	}
	if d, ok := urls.DispatchFromContext(ctx); ok {
		payload.DispatchID = d.ID.String()
	}

	return h.breaker.Do(ctx, func(ctx context.Context) error {
		req := h.client.R().SetContext(ctx).SetBody(payload)
		if payload.DispatchID != "" {
			req.SetHeader(HeaderDispatchID, payload.DispatchID)
		}

		resp, err := req.Post(h.url)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		if resp.IsError() {
			return &StatusError{URL: h.url, StatusCode: resp.StatusCode()}
		}

		h.logger.Debug("Webhook delivered",
			logging.DispatchID(payload.DispatchID),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		)
		return nil
	})
}

// BreakerState returns the state of the endpoint's circuit breaker.
func (h *Handler) BreakerState() resilience.State {
	return h.breaker.State()
}

// 4xx means the endpoint is up and rejected this URI; it does not count
// against the breaker.
func isEndpointFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
