package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewRefresher_Defaults(t *testing.T) {
	r := NewRefresher()
	assert.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0/token", r.endpoint.TokenURL)
	assert.Equal(t, DefaultTokenURL, r.endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, r.endpoint.AuthStyle)
}

func TestRefresher_AccessToken(t *testing.T) {
	fg, srv := newFakeGraph(t)
	r := newTestClient(srv).tokens

	token, err := r.AccessToken(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)

	require.Len(t, fg.tokenForms, 1)
	form := fg.tokenForms[0]
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-secret", form.Get("refresh_token"))
	assert.Equal(t, "client-123", form.Get("client_id"))
}

func TestRefresher_NoCaching(t *testing.T) {
	fg, srv := newFakeGraph(t)
	r := newTestClient(srv).tokens

	first, err := r.AccessToken(context.Background(), testCred)
	require.NoError(t, err)
	second, err := r.AccessToken(context.Background(), testCred)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, fg.tokenCalls)
}

func TestRefresher_Errors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		cred            Credential
		wantRetrieveErr bool
	}{
		{
			name:            "endpoint rejects refresh token",
			status:          http.StatusBadRequest,
			body:            `{"error":"invalid_grant","error_description":"AADSTS70000: token expired"}`,
			cred:            testCred,
			wantRetrieveErr: true,
		},
		{
			name: "response without access_token",
			body: `{"token_type":"Bearer","expires_in":3600}`,
			cred: testCred,
		},
		{
			name: "empty refresh token",
			cred: Credential{ClientID: "client-123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, srv := newFakeGraph(t)
			fg.tokenStatus = tt.status
			fg.tokenBody = tt.body
			r := newTestClient(srv).tokens

			token, err := r.AccessToken(context.Background(), tt.cred)
			require.Error(t, err)
			assert.Empty(t, token)

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)

			var retrieveErr *oauth2.RetrieveError
			assert.Equal(t, tt.wantRetrieveErr, errors.As(err, &retrieveErr))
		})
	}
}
