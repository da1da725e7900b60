package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsweeper/internal/backoff"
)

func TestEndpointRefresherParsesTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.fresh","expires_in":3600}`))
	}))
	defer srv.Close()

	r := NewEndpointRefresher(EndpointConfig{RefreshURL: srv.URL})
	tok, expiresIn, err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ya29.fresh", tok)
	assert.Equal(t, time.Hour, expiresIn)
}

func TestEndpointRefresherReturnsStatusErrorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewEndpointRefresher(EndpointConfig{RefreshURL: srv.URL})
	_, _, err := r.Refresh(context.Background())

	require.Error(t, err)
	var statusErr *backoff.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Contains(t, statusErr.Msg, "invalid_grant")
}

func TestEndpointRefresherRejectsEmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	r := NewEndpointRefresher(EndpointConfig{RefreshURL: srv.URL})
	_, _, err := r.Refresh(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access_token")
}

func TestEndpointRefresherRevoke(t *testing.T) {
	revoked := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		revoked = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewEndpointRefresher(EndpointConfig{RevokeURL: srv.URL})
	require.NoError(t, r.Revoke(context.Background()))
	assert.True(t, revoked)
}
