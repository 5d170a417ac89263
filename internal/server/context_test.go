package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/graph"
)

var testCred = graph.Credential{ClientID: "client", RefreshToken: "refresh"}

func TestNewServerContext_Validation(t *testing.T) {
	mail := graph.NewClient()
	ex := extract.New()

	tests := []struct {
		name    string
		build   func() (*ServerContext, error)
		wantErr string
	}{
		{
			name: "valid",
			build: func() (*ServerContext, error) {
				return NewServerContext(context.Background(), mail, ex, testCred)
			},
		},
		{
			name: "missing mail",
			build: func() (*ServerContext, error) {
				return NewServerContext(context.Background(), nil, ex, testCred)
			},
			wantErr: "mail service",
		},
		{
			name: "missing extractor",
			build: func() (*ServerContext, error) {
				return NewServerContext(context.Background(), mail, nil, testCred)
			},
			wantErr: "extractor",
		},
		{
			name: "missing refresh token",
			build: func() (*ServerContext, error) {
				return NewServerContext(context.Background(), mail, ex, graph.Credential{ClientID: "client"})
			},
			wantErr: "refresh token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := tt.build()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCred, sc.Credential())
			assert.NotNil(t, sc.Logger())
			assert.Nil(t, sc.Metrics())
			assert.Nil(t, sc.AuditLogger())
		})
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	sc, err := NewServerContext(context.Background(), graph.NewClient(), extract.New(), testCred)
	require.NoError(t, err)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)

	// Idempotent.
	require.NoError(t, sc.Shutdown())
}
