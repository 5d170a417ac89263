package instrumentation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Audit actions for mutating mailbox operations.
const (
	AuditActionSend      = "send_email"
	AuditActionDeleteAll = "delete_all"
)

// MailAudit captures one mutating mailbox operation for the audit trail.
//
// # Privacy Considerations
//
// ClientID and Recipients are sensitive. Unless the audit logger is
// configured with IncludePII, only hashes and recipient domains are logged.
type MailAudit struct {
	Action     string
	ClientID   string
	Folder     string
	Recipients []string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewMailAudit creates a new MailAudit with timing started.
func NewMailAudit(action, clientID string) *MailAudit {
	return &MailAudit{
		Action:    action,
		ClientID:  clientID,
		StartTime: time.Now(),
	}
}

// WithFolder sets the mailbox folder.
func (a *MailAudit) WithFolder(folder string) *MailAudit {
	a.Folder = folder
	return a
}

// WithRecipients sets the recipients of a send.
func (a *MailAudit) WithRecipients(recipients []string) *MailAudit {
	a.Recipients = recipients
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *MailAudit) WithSpanContext(ctx context.Context) *MailAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// Complete marks the operation as finished and records its outcome.
func (a *MailAudit) Complete(err error) *MailAudit {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns "success" or "error" based on the Success field.
func (a *MailAudit) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// attrs returns the slog attributes for this record. includePII selects
// raw client ID and recipients over their hashed/domain forms.
func (a *MailAudit) attrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Action),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if includePII {
		attrs = append(attrs, slog.String("client_id", a.ClientID))
		if len(a.Recipients) > 0 {
			attrs = append(attrs, slog.Any("recipients", a.Recipients))
		}
	} else {
		attrs = append(attrs, slog.String("client_hash", hashClientID(a.ClientID)))
		if len(a.Recipients) > 0 {
			attrs = append(attrs, slog.Any("recipient_domains", RecipientDomains(a.Recipients)))
		}
	}

	if a.Folder != "" {
		attrs = append(attrs, slog.String("folder", a.Folder))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}
	return attrs
}

func hashClientID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// AuditLogger writes MailAudit records to a dedicated slog.Logger.
// A nil *AuditLogger is valid and logs nothing.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("log_type", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes one audit record.
func (al *AuditLogger) Log(a *MailAudit) {
	if al == nil || !al.enabled || a == nil {
		return
	}

	attrs := a.attrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("mail_operation", args...)
	} else {
		al.logger.Warn("mail_operation_failed", args...)
	}
}
