package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/instrumentation"
)

const (
	// DefaultAddr is the default listen address for the gateway.
	DefaultAddr = ":5000"

	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout leaves room for a full bulk delete.
	DefaultWriteTimeout = 5 * time.Minute
	DefaultIdleTimeout  = 120 * time.Second
)

// MailService is the mail provider the gateway fronts.
type MailService interface {
	List(ctx context.Context, cred graph.Credential, folder string, limit int) ([]graph.Message, error)
	FindFirst(ctx context.Context, cred graph.Credential, q graph.FindQuery) (*graph.Message, error)
	Send(ctx context.Context, cred graph.Credential, msg graph.OutgoingMessage) (bool, error)
	DeleteAll(ctx context.Context, cred graph.Credential, folder string) error
}

// Extractor pulls content out of a message body.
type Extractor interface {
	Extract(ctx context.Context, body string, q extract.Query) extract.Result
}

// Config holds the gateway settings.
type Config struct {
	// Addr is the listen address (e.g. ":5000").
	Addr string

	// APIKey is the shared secret expected in the Api-Key header.
	APIKey string

	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the per-IP burst size.
	RateBurst int

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Server serves the gateway routes.
type Server struct {
	config    Config
	mail      MailService
	extractor Extractor
	apiKey    []byte

	health  *HealthChecker
	limiter *RateLimiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	handler    http.Handler
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthChecker shares a health checker with the caller.
func WithHealthChecker(h *HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// New builds a Server. The API key must not be empty.
func New(config Config, mail MailService, extractor Extractor, opts ...Option) (*Server, error) {
	if config.APIKey == "" {
		return nil, errors.New("gateway: API key is required")
	}
	if mail == nil {
		return nil, errors.New("gateway: mail service is required")
	}
	if extractor == nil {
		return nil, errors.New("gateway: extractor is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}

	s := &Server{
		config:    config,
		mail:      mail,
		extractor: extractor,
		apiKey:    []byte(config.APIKey),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = NewHealthChecker()
	}
	if config.RateLimit > 0 {
		s.limiter = NewRateLimiter(config.RateLimit, config.RateBurst, s.logger)
	}

	s.handler = otelhttp.NewHandler(s.routes(), "mailgateway")
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/", s.handleRoot)
	s.health.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/send_email", s.handleSendEmail)
		r.Get("/get_messages", s.handleGetMessages)
		r.Get("/get_mail", s.handleGetMail)
		r.Get("/get_code_or_link", s.handleGetCodeOrLink)
		r.Delete("/delete_all_inbox_emails", s.handleDeleteAll(graph.FolderInbox))
		r.Delete("/delete_all_junkemail_emails", s.handleDeleteAll(graph.FolderJunk))
	})

	return r
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Start listens on the configured address and serves until Shutdown.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start, closing ready once the listener is bound.
func (s *Server) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Gateway listening", slog.String("addr", ln.Addr().String()))
	if ready != nil {
		close(ready)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown marks the server not ready, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.logger.Info("Shutting down gateway")
	return s.httpServer.Shutdown(ctx)
}
