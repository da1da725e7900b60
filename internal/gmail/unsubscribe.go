package gmail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/inboxsweeper/internal/backoff"
)

// UnsubscribeInfo describes how to unsubscribe from a message's
// sender, extracted from the List-Unsubscribe header (RFC 2369).
type UnsubscribeInfo struct {
	MessageID      string
	Sender         string
	HasUnsubscribe bool
	Methods        []UnsubscribeMethod
}

// UnsubscribeMethod is a single unsubscribe mechanism.
type UnsubscribeMethod struct {
	Type string // "mailto" or "http"
	URL  string
}

// unsubscribeHTTPClient performs unsubscribe GETs. Kept separate from
// the API transport since these requests go to arbitrary hosts.
var unsubscribeHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// GetUnsubscribeInfo extracts List-Unsubscribe information from a
// message without downloading its body.
func (c *Client) GetUnsubscribeInfo(ctx context.Context, messageID string) (*UnsubscribeInfo, error) {
	msg, err := c.MessageMetadata(ctx, messageID, "From", "List-Unsubscribe")
	if err != nil {
		return nil, err
	}

	info := &UnsubscribeInfo{
		MessageID: messageID,
		Sender:    HeaderValue(msg, "From"),
		Methods:   []UnsubscribeMethod{},
	}

	header := HeaderValue(msg, "List-Unsubscribe")
	if header == "" {
		return info, nil
	}

	info.HasUnsubscribe = true
	info.Methods = parseListUnsubscribe(header)
	return info, nil
}

// parseListUnsubscribe parses a List-Unsubscribe header value.
// The header is a comma-separated list of angle-bracketed URIs, e.g.
// <mailto:unsub@example.com>, <https://example.com/unsub?id=42>.
func parseListUnsubscribe(header string) []UnsubscribeMethod {
	var methods []UnsubscribeMethod

	for _, part := range strings.Split(header, "<") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		end := strings.Index(part, ">")
		if end == -1 {
			continue
		}
		uri := strings.TrimSpace(part[:end])

		switch {
		case strings.HasPrefix(uri, "mailto:"):
			methods = append(methods, UnsubscribeMethod{Type: "mailto", URL: uri})
		case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
			methods = append(methods, UnsubscribeMethod{Type: "http", URL: uri})
		}
	}

	return methods
}

// UnsubscribeViaHTTP performs an HTTP GET against an unsubscribe URL.
// Non-2xx/3xx responses are returned as status errors so the retry
// classifier can distinguish transient failures from dead links.
func (c *Client) UnsubscribeViaHTTP(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid HTTP URL: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// Some unsubscribe endpoints reject requests without a user agent.
	req.Header.Set("User-Agent", "inboxsweeper/1.0")

	resp, err := unsubscribeHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send unsubscribe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &backoff.StatusError{Code: resp.StatusCode, Msg: "unsubscribe request failed"}
	}
	return nil
}
