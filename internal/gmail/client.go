package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxsweeper/internal/backoff"
	"github.com/teemow/inboxsweeper/internal/logging"
)

const (
	// MaxBatchModifyIDs is the Gmail API ceiling on message IDs per
	// batchModify request.
	MaxBatchModifyIDs = 1000

	// listPageSize is the page size used when listing message IDs.
	listPageSize = 500

	// defaultRateLimit is the steady-state request rate against the
	// Gmail API. Gmail grants 250 quota units/sec per user; list and
	// modify calls cost 5 units each.
	defaultRateLimit = rate.Limit(10)

	defaultRateBurst = 20
)

// Client wraps the Gmail Users and Settings services for bulk
// mailbox operations. All calls are rate limited and retried
// according to the configured backoff policy.
type Client struct {
	svc     *gmail.UsersService
	limiter *rate.Limiter
	policy  backoff.Policy
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit overrides the default request rate and burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithBackoffPolicy overrides the retry policy applied to API calls.
func WithBackoffPolicy(p backoff.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a Gmail client authenticated by the given token
// source. The source is typically token.Manager.Source(), so access
// tokens are refreshed transparently between calls.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	c := &Client{
		svc:     svc.Users,
		limiter: rate.NewLimiter(defaultRateLimit, defaultRateBurst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call waits for rate limiter clearance and runs fn under the retry
// policy. Every outbound API request goes through here.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	p := c.policy
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, err error) {
			c.logger.Warn("retrying Gmail API call",
				logging.Operation(op),
				slog.Int("attempt", attempt),
				logging.Err(err))
		}
	}
	return backoff.Do(ctx, p, fn)
}

// Profile returns the authenticated user's Gmail profile, including
// the total message count used for runtime estimates.
func (c *Client) Profile(ctx context.Context) (*gmail.Profile, error) {
	var profile *gmail.Profile
	err := c.call(ctx, "get_profile", func(ctx context.Context) error {
		p, err := c.svc.GetProfile("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// ListMessageIDs returns the IDs of all messages matching the query,
// paging through results. A max of 0 means no limit.
func (c *Client) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		pageSize := int64(listPageSize)
		if max > 0 {
			remaining := max - int64(len(ids))
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		var res *gmail.ListMessagesResponse
		err := c.call(ctx, "list_messages", func(ctx context.Context) error {
			req := c.svc.Messages.List("me").Q(query).MaxResults(pageSize)
			if pageToken != "" {
				req.PageToken(pageToken)
			}
			r, err := req.Context(ctx).Do()
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return ids, nil
}

// MessageMetadata fetches a message in metadata format, restricted to
// the given headers. Metadata format avoids downloading bodies when
// only headers like From or List-Unsubscribe are needed.
func (c *Client) MessageMetadata(ctx context.Context, id string, headers ...string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, "get_message", func(ctx context.Context) error {
		req := c.svc.Messages.Get("me", id).Format("metadata")
		if len(headers) > 0 {
			req.MetadataHeaders(headers...)
		}
		m, err := req.Context(ctx).Do()
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// HeaderValue returns the value of the named header from a message's
// payload, or an empty string if absent. Header names are compared
// case-insensitively.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// BatchModify adds and removes labels on up to MaxBatchModifyIDs
// messages in a single API call. Callers sweeping more messages must
// chunk their ID lists first.
func (c *Client) BatchModify(ctx context.Context, ids, addLabelIDs, removeLabelIDs []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatchModifyIDs {
		return fmt.Errorf("batch of %d message IDs exceeds limit of %d", len(ids), MaxBatchModifyIDs)
	}

	req := &gmail.BatchModifyMessagesRequest{
		Ids:            ids,
		AddLabelIds:    addLabelIDs,
		RemoveLabelIds: removeLabelIDs,
	}
	err := c.call(ctx, "batch_modify", func(ctx context.Context) error {
		return c.svc.Messages.BatchModify("me", req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to batch modify %d messages: %w", len(ids), err)
	}
	return nil
}

// ListLabels lists all Gmail labels for the user.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var labels []*gmail.Label
	err := c.call(ctx, "list_labels", func(ctx context.Context) error {
		res, err := c.svc.Labels.List("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = res.Labels
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return labels, nil
}

// EnsureLabel returns the ID of the named label, creating it when it
// does not exist. Label names are matched case-insensitively.
func (c *Client) EnsureLabel(ctx context.Context, name string) (string, error) {
	labels, err := c.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.Id, nil
		}
	}

	var created *gmail.Label
	err = c.call(ctx, "create_label", func(ctx context.Context) error {
		l, err := c.svc.Labels.Create("me", &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}
	c.logger.Info("created label", slog.String("label", name))
	return created.Id, nil
}
