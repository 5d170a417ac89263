package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "graph.list")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRoute(NewLogger(&buf, "text", false), "/get_mail")
	logger.Info("handled")
	if !strings.Contains(buf.String(), "route=/get_mail") {
		t.Errorf("expected route attribute in output, got %q", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		debug     bool
		wantDebug bool
		wantJSON  bool
	}{
		{name: "text info", format: "text", debug: false, wantDebug: false, wantJSON: false},
		{name: "text debug", format: "", debug: true, wantDebug: true, wantJSON: false},
		{name: "json info", format: "JSON", debug: false, wantDebug: false, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.format, tt.debug)
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug output present = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v (%q)", got, tt.wantJSON, out)
			}
		})
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("graph.send"), KeyOperation, "graph.send"},
		{"folder", Folder("junkemail"), KeyFolder, "junkemail"},
		{"message id", MessageID("AAMk1"), KeyMessageID, "AAMk1"},
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
		{"attempt", Attempt(2), KeyAttempt, "2"},
		{"sender domain", SenderDomain("jane@example.com"), "sender_domain", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Empty Group has empty key
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestHashIdentifier(t *testing.T) {
	if got := HashIdentifier(""); got != "" {
		t.Errorf("HashIdentifier(\"\") = %q, want empty", got)
	}

	h1 := HashIdentifier("9e5f94bc-e8a4-4e73-b8be-63364c29d753")
	if len(h1) != 19 || !strings.HasPrefix(h1, "id:") {
		t.Errorf("unexpected hash format %q", h1)
	}
	if h1 != HashIdentifier("9e5f94bc-e8a4-4e73-b8be-63364c29d753") {
		t.Error("HashIdentifier should be deterministic")
	}
	if h1 == HashIdentifier("other-client") {
		t.Error("different identifiers should hash differently")
	}

	attr := ClientHash("client")
	if attr.Key != KeyClientHash || attr.Value.String() != HashIdentifier("client") {
		t.Errorf("ClientHash = %v", attr)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"M.C507_BAY.0.U.-Cg7", "[token:19 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"user@outlook.com", "outlook.com"},
		{"invalid", ""},
		{"", ""},
		{"@", ""},
		{"user@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := ExtractDomain(tt.email)
			if result != tt.expected {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, result, tt.expected)
			}
		})
	}
}
