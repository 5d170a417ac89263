package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/logging"
)

const (
	// DefaultRetries is how many times a failed call is retried after the
	// first attempt.
	DefaultRetries = 3

	// DefaultBackoffFactor doubles the wait between attempts.
	DefaultBackoffFactor = 2.0

	// DefaultInitialInterval is the wait before the first retry.
	DefaultInitialInterval = 2 * time.Second

	DefaultMaxInterval = 30 * time.Second
	DefaultTimeout     = 5 * time.Minute

	apiKeyHeader    = "Api-Key"
	maxResponseBody = 16 << 20
)

// Client is a typed caller of the gateway routes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	retries         int
	backoffFactor   float64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetries sets how many retries follow a failed first attempt.
// Zero disables retrying.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the first retry wait and the factor it grows by.
func WithBackoff(initial time.Duration, factor float64) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if factor >= 1 {
			c.backoffFactor = factor
		}
	}
}

// WithMaxInterval caps the wait between attempts.
func WithMaxInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxInterval = d
		}
	}
}

// New returns a Client for the gateway at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:          slog.Default(),
		retries:         DefaultRetries,
		backoffFactor:   DefaultBackoffFactor,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendEmailRequest is the message to send through the gateway.
type SendEmailRequest struct {
	To      []string
	Subject string
	Content string
	IsHTML  bool
}

// MailQuery selects a message for GetMail and GetCodeOrLink. Empty fields
// are left to the gateway's defaults.
type MailQuery struct {
	SubjectPattern string
	Sender         string
	Folder         string
	Top            int
}

// CodeQuery adds extraction parameters to a MailQuery.
type CodeQuery struct {
	MailQuery
	Pattern string
	Between string
}

// Health calls the root route and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, http.MethodGet, "/", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SendEmail sends a message and returns the gateway's success flag.
func (c *Client) SendEmail(ctx context.Context, cred graph.Credential, req SendEmailRequest) (bool, error) {
	body := map[string]any{
		"client_id":     cred.ClientID,
		"refresh_token": cred.RefreshToken,
		"to_recipients": req.To,
		"subject":       req.Subject,
		"content":       req.Content,
		"is_html":       req.IsHTML,
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.call(ctx, http.MethodPost, "/send_email", nil, body, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// GetMessages lists up to top messages of folder, newest first.
func (c *Client) GetMessages(ctx context.Context, cred graph.Credential, folder string, top int) ([]graph.Message, error) {
	q := credentialQuery(cred)
	setIfNotEmpty(q, "folder_id", folder)
	setIfPositive(q, "top", top)

	var out []graph.Message
	if err := c.call(ctx, http.MethodGet, "/get_messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMail returns the first message matching mq.
func (c *Client) GetMail(ctx context.Context, cred graph.Credential, mq MailQuery) (*graph.Mail, error) {
	q := credentialQuery(cred)
	mq.apply(q)

	var out graph.Mail
	if err := c.call(ctx, http.MethodGet, "/get_mail", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCodeOrLink extracts content from the first message matching cq.
// A result of extract.Miss is a successful call.
func (c *Client) GetCodeOrLink(ctx context.Context, cred graph.Credential, cq CodeQuery) (extract.Result, error) {
	q := credentialQuery(cred)
	cq.apply(q)
	setIfNotEmpty(q, "pattern", cq.Pattern)
	setIfNotEmpty(q, "between", cq.Between)

	var out extract.Result
	if err := c.call(ctx, http.MethodGet, "/get_code_or_link", q, nil, &out); err != nil {
		return extract.Miss, err
	}
	return out, nil
}

// DeleteAllInbox deletes every message in the inbox.
func (c *Client) DeleteAllInbox(ctx context.Context, cred graph.Credential) error {
	return c.call(ctx, http.MethodDelete, "/delete_all_inbox_emails", credentialQuery(cred), nil, nil)
}

// DeleteAllJunk deletes every message in the junk folder.
func (c *Client) DeleteAllJunk(ctx context.Context, cred graph.Credential) error {
	return c.call(ctx, http.MethodDelete, "/delete_all_junkemail_emails", credentialQuery(cred), nil, nil)
}

func (mq MailQuery) apply(q url.Values) {
	setIfNotEmpty(q, "subject_pattern", mq.SubjectPattern)
	setIfNotEmpty(q, "sender", mq.Sender)
	setIfNotEmpty(q, "folder_id", mq.Folder)
	setIfPositive(q, "top", mq.Top)
}

func credentialQuery(cred graph.Credential) url.Values {
	q := url.Values{}
	q.Set("client_id", cred.ClientID)
	q.Set("refresh_token", cred.RefreshToken)
	return q
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setIfPositive(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.Multiplier = c.backoffFactor
	b.RandomizationFactor = 0.1
	b.MaxInterval = c.maxInterval
	return b
}

// call performs one gateway request under the retry policy. A non-nil in
// is sent as a JSON body; a non-nil out receives the decoded response.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	logger := logging.WithRoute(c.logger, path)
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return struct{}{}, newAPIError(resp.StatusCode, data)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("Gateway call failed, retrying",
				logging.Attempt(attempt),
				slog.Duration("wait", wait),
				logging.Err(err))
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		logger.Error("Gateway call failed",
			logging.Attempt(attempt),
			logging.Err(err))
		return err
	}
	return nil
}
