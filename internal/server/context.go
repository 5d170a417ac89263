package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/mailgateway/internal/gateway"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/instrumentation"
)

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mail       gateway.MailService
	extractor  gateway.Extractor
	credential graph.Credential

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithMetrics sets the metrics recorder for tool invocations.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) {
		sc.auditLogger = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) {
		if l != nil {
			sc.logger = l
		}
	}
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, mail gateway.MailService, extractor gateway.Extractor, cred graph.Credential, opts ...Option) (*ServerContext, error) {
	if mail == nil {
		return nil, errors.New("mail service is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cred.ClientID == "" || cred.RefreshToken == "" {
		return nil, errors.New("client ID and refresh token are required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		mail:       mail,
		extractor:  extractor,
		credential: cred,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mail returns the mail service.
func (sc *ServerContext) Mail() gateway.MailService {
	return sc.mail
}

// Extractor returns the body extractor.
func (sc *ServerContext) Extractor() gateway.Extractor {
	return sc.extractor
}

// Credential returns the mailbox credential configured at startup.
func (sc *ServerContext) Credential() graph.Credential {
	return sc.credential
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
