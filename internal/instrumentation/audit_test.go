package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newAuditBuffer(cfg AuditLoggingConfig) (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditLogger(logger, cfg), &buf
}

func TestAuditLogger_AnonymizedByDefault(t *testing.T) {
	al, buf := newAuditBuffer(AuditLoggingConfig{Enabled: true})

	audit := NewMailAudit(AuditActionSend, "my-client-id").
		WithRecipients([]string{"jane@example.com"}).
		Complete(nil)
	al.Log(audit)

	out := buf.String()
	if !strings.Contains(out, "msg=mail_operation") {
		t.Errorf("expected success message, got %q", out)
	}
	if strings.Contains(out, "my-client-id") || strings.Contains(out, "jane@example.com") {
		t.Errorf("PII leaked into audit log: %q", out)
	}
	if !strings.Contains(out, "example.com") || !strings.Contains(out, "client_hash=") {
		t.Errorf("expected recipient domain and client hash, got %q", out)
	}
	if !strings.Contains(out, "log_type=audit") {
		t.Errorf("expected audit log type, got %q", out)
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	al, buf := newAuditBuffer(AuditLoggingConfig{Enabled: true, IncludePII: true})

	al.Log(NewMailAudit(AuditActionDeleteAll, "my-client-id").
		WithFolder("junkemail").
		Complete(errors.New("remote rejected")))

	out := buf.String()
	for _, want := range []string{"msg=mail_operation_failed", "client_id=my-client-id", "folder=junkemail", `error="remote rejected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %q: %s", want, out)
		}
	}
}

func TestAuditLogger_DisabledAndNil(t *testing.T) {
	al, buf := newAuditBuffer(AuditLoggingConfig{Enabled: false})
	al.Log(NewMailAudit(AuditActionSend, "id").Complete(nil))
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.Log(NewMailAudit(AuditActionSend, "id"))
}

func TestMailAudit_Status(t *testing.T) {
	a := NewMailAudit(AuditActionSend, "id").Complete(nil)
	if a.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want success", a.Status())
	}
	a = NewMailAudit(AuditActionSend, "id").Complete(errors.New("x"))
	if a.Status() != StatusError || a.Error != "x" {
		t.Errorf("unexpected failed audit %+v", a)
	}
}
