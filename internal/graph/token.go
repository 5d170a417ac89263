package graph

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/teemow/mailgateway/internal/instrumentation"
	"github.com/teemow/mailgateway/internal/logging"
)

// DefaultTokenURL is the Microsoft identity platform token endpoint for the
// common tenant.
var DefaultTokenURL = microsoft.AzureADEndpoint("common").TokenURL

// TokenSource mints a bearer token for a credential.
type TokenSource interface {
	AccessToken(ctx context.Context, cred Credential) (string, error)
}

// Refresher exchanges refresh tokens for access tokens. It holds no token
// state; every call performs a fresh exchange.
type Refresher struct {
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) RefresherOption {
	return func(r *Refresher) {
		r.endpoint.TokenURL = tokenURL
	}
}

// WithRefresherHTTPClient sets the HTTP client used for the exchange.
func WithRefresherHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.httpClient = c
	}
}

// WithRefresherMetrics sets the metrics recorder.
func WithRefresherMetrics(m *instrumentation.Metrics) RefresherOption {
	return func(r *Refresher) {
		r.metrics = m
	}
}

// WithRefresherLogger sets the logger.
func WithRefresherLogger(l *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = l
	}
}

// NewRefresher returns a Refresher for the Microsoft common tenant.
func NewRefresher(opts ...RefresherOption) *Refresher {
	endpoint := microsoft.AzureADEndpoint("common")
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	r := &Refresher{
		endpoint:   endpoint,
		httpClient: defaultHTTPClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AccessToken performs a refresh_token grant for cred and returns the new
// access token. Any failure, including a 2xx response without an
// access_token, is returned as *AuthError. There is no retry.
func (r *Refresher) AccessToken(ctx context.Context, cred Credential) (string, error) {
	start := time.Now()
	ctx, span := instrumentation.StartGraphSpan(ctx, instrumentation.OperationRefresh, "")
	defer span.End()

	conf := &oauth2.Config{
		ClientID: cred.ClientID,
		Endpoint: r.endpoint,
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// An empty access token is never valid, so the source refreshes
	// immediately.
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err == nil && tok.AccessToken == "" {
		err = errMissingAccessToken
	}

	duration := time.Since(start)
	if err != nil {
		r.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		r.metrics.RecordGraphOperation(ctx, instrumentation.OperationRefresh, "", instrumentation.StatusError, duration)
		instrumentation.SetSpanError(span, err)
		r.logger.Error("Failed to refresh access token",
			logging.ClientHash(cred.ClientID),
			logging.Err(err))
		return "", &AuthError{Err: err}
	}

	r.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
	r.metrics.RecordGraphOperation(ctx, instrumentation.OperationRefresh, "", instrumentation.StatusSuccess, duration)
	instrumentation.SetSpanSuccess(span)
	r.logger.Debug("Refreshed access token",
		logging.ClientHash(cred.ClientID),
		slog.String("token", logging.SanitizeToken(tok.AccessToken)),
		slog.Duration(logging.KeyDuration, duration))

	return tok.AccessToken, nil
}
