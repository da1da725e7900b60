package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsweeper/internal/backoff"
)

func TestParseListUnsubscribe(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected []UnsubscribeMethod
	}{
		{
			name:   "mailto and http",
			header: "<mailto:unsub@example.com>, <https://example.com/unsub>",
			expected: []UnsubscribeMethod{
				{Type: "mailto", URL: "mailto:unsub@example.com"},
				{Type: "http", URL: "https://example.com/unsub"},
			},
		},
		{
			name:   "http only",
			header: "<https://example.com/unsub?id=42>",
			expected: []UnsubscribeMethod{
				{Type: "http", URL: "https://example.com/unsub?id=42"},
			},
		},
		{
			name:   "mailto with subject parameter",
			header: "<mailto:unsub@example.com?subject=unsubscribe>",
			expected: []UnsubscribeMethod{
				{Type: "mailto", URL: "mailto:unsub@example.com?subject=unsubscribe"},
			},
		},
		{
			name:     "unsupported scheme is skipped",
			header:   "<ftp://example.com/unsub>",
			expected: nil,
		},
		{
			name:     "malformed header without closing bracket",
			header:   "<https://example.com/unsub",
			expected: nil,
		},
		{
			name:     "empty header",
			header:   "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseListUnsubscribe(tt.header))
		})
	}
}

func TestUnsubscribeViaHTTP(t *testing.T) {
	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{}
	err := c.UnsubscribeViaHTTP(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "inboxsweeper/1.0", gotUserAgent)
}

func TestUnsubscribeViaHTTP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{}
	err := c.UnsubscribeViaHTTP(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *backoff.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestUnsubscribeViaHTTP_InvalidURL(t *testing.T) {
	c := &Client{}
	err := c.UnsubscribeViaHTTP(context.Background(), "mailto:unsub@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP URL")
}
