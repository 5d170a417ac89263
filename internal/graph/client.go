package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/mailgateway/internal/instrumentation"
	"github.com/teemow/mailgateway/internal/logging"
)

const (
	listSelect  = "subject,receivedDateTime,from,body"
	listOrderBy = "receivedDateTime DESC"
	preferText  = `outlook.body-content-type="text"`

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// Client talks to the Graph mail API on behalf of whichever credential is
// passed to each call.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	tokens            TokenSource
	metrics           *instrumentation.Metrics
	audit             *instrumentation.AuditLogger
	logger            *slog.Logger
	deleteConcurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (DefaultBaseURL).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets how access tokens are obtained.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithAuditLogger sets the audit logger for send and delete operations.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(c *Client) {
		c.audit = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDeleteConcurrency bounds how many deletions DeleteAll runs at once.
// Values below 1 are ignored.
func WithDeleteConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.deleteConcurrency = n
		}
	}
}

// NewClient returns a Client with defaults for anything not configured.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:           DefaultBaseURL,
		httpClient:        defaultHTTPClient,
		logger:            slog.Default(),
		deleteConcurrency: DefaultDeleteConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewRefresher(
			WithRefresherHTTPClient(c.httpClient),
			WithRefresherMetrics(c.metrics),
			WithRefresherLogger(c.logger),
		)
	}
	return c
}

// List returns up to limit messages from folder, newest first. A limit
// below 1 means DefaultListLimit.
func (c *Client) List(ctx context.Context, cred Credential, folder string, limit int) ([]Message, error) {
	if limit < 1 {
		limit = DefaultListLimit
	}

	token, err := c.tokens.AccessToken(ctx, cred)
	if err != nil {
		return nil, err
	}

	msgs, err := c.list(ctx, token, folder, limit, true)
	if err != nil {
		c.logger.Error("Failed to list messages",
			logging.Folder(folder),
			logging.ClientHash(cred.ClientID),
			logging.Err(err))
		return nil, err
	}
	return msgs, nil
}

// ListJunk is List over the junk folder.
func (c *Client) ListJunk(ctx context.Context, cred Credential, limit int) ([]Message, error) {
	return c.List(ctx, cred, FolderJunk, limit)
}

// FindFirst scans the newest q.Limit messages of q.Folder and returns the
// first whose subject contains q.SubjectContains and whose sender equals
// q.Sender. Empty filters are not applied. When nothing matches the error
// is *NotFoundError.
func (c *Client) FindFirst(ctx context.Context, cred Credential, q FindQuery) (*Message, error) {
	folder := q.Folder
	if folder == "" {
		folder = FolderInbox
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultFindLimit
	}

	msgs, err := c.List(ctx, cred, folder, limit)
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		if matches(&msgs[i], q) {
			return &msgs[i], nil
		}
	}

	nf := &NotFoundError{SubjectContains: q.SubjectContains, Sender: q.Sender}
	c.logger.Info("No matching message found",
		logging.Folder(folder),
		slog.Int("scanned", len(msgs)),
		slog.String("subject_contains", q.SubjectContains),
		logging.SenderDomain(q.Sender))
	return nil, nf
}

func matches(m *Message, q FindQuery) bool {
	if q.SubjectContains != "" && !strings.Contains(m.Subject, q.SubjectContains) {
		return false
	}
	if q.Sender != "" && m.SenderAddress() != q.Sender {
		return false
	}
	return true
}

// Send submits msg through the signed-in mailbox.
func (c *Client) Send(ctx context.Context, cred Credential, msg OutgoingMessage) (bool, error) {
	audit := instrumentation.NewMailAudit(instrumentation.AuditActionSend, cred.ClientID).
		WithRecipients(msg.To)
	defer func() { c.audit.Log(audit) }()

	token, err := c.tokens.AccessToken(ctx, cred)
	if err != nil {
		audit.Complete(err)
		return false, err
	}

	contentType := "Text"
	if msg.IsHTML {
		contentType = "HTML"
	}
	req := sendMailRequest{
		Message: sendMailMessage{
			Subject: msg.Subject,
			Body: ItemBody{
				ContentType: contentType,
				Content:     msg.Body,
			},
			ToRecipients: make([]Recipient, 0, len(msg.To)),
		},
	}
	for _, addr := range msg.To {
		req.Message.ToRecipients = append(req.Message.ToRecipients, Recipient{
			EmailAddress: EmailAddress{Address: addr},
		})
	}

	ctx, span := instrumentation.StartGraphSpan(ctx, instrumentation.OperationSend, "",
		attribute.Int("mail.recipient_count", len(msg.To)))
	defer span.End()
	audit.WithSpanContext(ctx)

	start := time.Now()
	err = c.do(ctx, token, "send mail", http.MethodPost, "/me/sendMail", nil, nil, req, nil)
	c.record(ctx, instrumentation.OperationSend, "", start, err)
	audit.Complete(err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.logger.Error("Failed to send email",
			logging.ClientHash(cred.ClientID),
			slog.Any("recipient_domains", instrumentation.RecipientDomains(msg.To)),
			logging.Err(err))
		return false, err
	}

	instrumentation.SetSpanSuccess(span)
	c.logger.Info("Email sent",
		slog.Int("recipients", len(msg.To)),
		logging.ClientHash(cred.ClientID))
	return true, nil
}

// DeleteAll deletes up to DeleteListLimit messages from folder, running at
// most the configured number of deletions at once. The first failure stops
// deletions that have not started yet and is returned once every running
// deletion has finished. Messages already deleted stay deleted.
func (c *Client) DeleteAll(ctx context.Context, cred Credential, folder string) error {
	audit := instrumentation.NewMailAudit(instrumentation.AuditActionDeleteAll, cred.ClientID).
		WithFolder(folder)
	defer func() { c.audit.Log(audit) }()

	token, err := c.tokens.AccessToken(ctx, cred)
	if err != nil {
		audit.Complete(err)
		return err
	}

	msgs, err := c.list(ctx, token, folder, DeleteListLimit, false)
	if err != nil {
		audit.Complete(err)
		c.logger.Error("Failed to list messages for deletion",
			logging.Folder(folder),
			logging.Err(err))
		return err
	}

	ctx, span := instrumentation.StartSpan(ctx, "graph.delete_all",
		attribute.String(instrumentation.SpanAttrFolder, folder),
		attribute.Int(instrumentation.SpanAttrMessageCount, len(msgs)))
	defer span.End()
	audit.WithSpanContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.deleteConcurrency)

	for _, m := range msgs {
		if gctx.Err() != nil {
			break
		}
		id := m.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return c.deleteMessage(gctx, token, folder, id)
		})
	}

	err = g.Wait()
	audit.Complete(err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.logger.Error("Bulk delete stopped",
			logging.Folder(folder),
			logging.Err(err))
		return err
	}

	instrumentation.SetSpanSuccess(span)
	c.logger.Info("Deleted all messages",
		logging.Folder(folder),
		slog.Int("count", len(msgs)))
	return nil
}

func (c *Client) deleteMessage(ctx context.Context, token, folder, id string) error {
	start := time.Now()
	err := c.do(ctx, token, "delete message", http.MethodDelete, "/me/messages/"+url.PathEscape(id), nil, nil, nil, nil)
	c.record(ctx, instrumentation.OperationDelete, folder, start, err)
	if err != nil {
		c.metrics.RecordMessageDeleted(ctx, instrumentation.StatusError)
		c.logger.Error("Failed to delete message",
			logging.Folder(folder),
			logging.MessageID(id),
			logging.Err(err))
		return err
	}
	c.metrics.RecordMessageDeleted(ctx, instrumentation.StatusSuccess)
	c.logger.Info("Deleted message",
		logging.Folder(folder),
		logging.MessageID(id))
	return nil
}

// list fetches one page of folder. With full set, the content projection
// and text bodies are requested; otherwise only ids.
func (c *Client) list(ctx context.Context, token, folder string, limit int, full bool) ([]Message, error) {
	ctx, span := instrumentation.StartGraphSpan(ctx, instrumentation.OperationList, folder)
	defer span.End()

	query := url.Values{}
	query.Set("$top", strconv.Itoa(limit))
	header := http.Header{}
	if full {
		query.Set("$select", listSelect)
		query.Set("$orderby", listOrderBy)
		header.Set("Prefer", preferText)
	} else {
		query.Set("$select", "id")
	}

	start := time.Now()
	var page messageList
	path := "/me/mailFolders/" + url.PathEscape(folder) + "/messages"
	err := c.do(ctx, token, "list messages", http.MethodGet, path, query, header, nil, &page)
	c.record(ctx, instrumentation.OperationList, folder, start, err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	msgs := page.Value
	if full {
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].ReceivedDateTime.After(msgs[j].ReceivedDateTime)
		})
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrMessageCount, len(msgs)))
	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("Listed messages",
		logging.Folder(folder),
		slog.Int("count", len(msgs)))
	return msgs, nil
}

// do performs one authenticated API call. A non-nil in is sent as JSON; a
// non-nil out receives the decoded 2xx response.
func (c *Client) do(ctx context.Context, token, op, method, path string, query url.Values, header http.Header, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRemoteError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func newRemoteError(op string, resp *http.Response) *RemoteError {
	re := &RemoteError{Operation: op, StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ge graphErrorBody
	if err := json.Unmarshal(raw, &ge); err == nil && (ge.Error.Code != "" || ge.Error.Message != "") {
		re.Code = ge.Error.Code
		re.Message = ge.Error.Message
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		re.Message = text
	}
	return re
}

func (c *Client) record(ctx context.Context, operation, folder string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGraphOperation(ctx, operation, folder, status, time.Since(start))
}
