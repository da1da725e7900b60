package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/inboxsweeper/internal/backoff"
)

// EndpointConfig points at the external token endpoints. The refresh
// credential itself travels as a cookie, so the HTTP client must carry
// the session's cookie jar.
type EndpointConfig struct {
	// RefreshURL accepts a POST and answers {access_token, expires_in}.
	RefreshURL string

	// RevokeURL accepts a POST and invalidates the refresh credential.
	RevokeURL string

	// Client is the HTTP client to use. Defaults to http.DefaultClient.
	Client *http.Client
}

// EndpointRefresher implements Refresher against the token HTTP
// endpoints. The authorization-code exchange that mints the refresh
// credential happens elsewhere; this only consumes it.
type EndpointRefresher struct {
	cfg    EndpointConfig
	client *http.Client
}

// NewEndpointRefresher creates a refresher for the given endpoints.
func NewEndpointRefresher(cfg EndpointConfig) *EndpointRefresher {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointRefresher{cfg: cfg, client: client}
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Refresh exchanges the cookie-carried refresh credential for a new
// access token.
func (r *EndpointRefresher) Refresh(ctx context.Context) (string, time.Duration, error) {
	body, err := r.post(ctx, r.cfg.RefreshURL)
	if err != nil {
		return "", 0, err
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("parse refresh response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", 0, fmt.Errorf("refresh response missing access_token")
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// Revoke invalidates the refresh credential server-side.
func (r *EndpointRefresher) Revoke(ctx context.Context) error {
	_, err := r.post(ctx, r.cfg.RevokeURL)
	return err
}

func (r *EndpointRefresher) post(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &backoff.StatusError{
			Code: resp.StatusCode,
			Msg:  strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
