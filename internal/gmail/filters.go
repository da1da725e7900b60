package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
)

// FilterCriteria describes which messages a Gmail filter matches.
type FilterCriteria struct {
	From           string
	To             string
	Subject        string
	Query          string
	HasAttachment  bool
	Size           int64
	SizeComparison string // "larger" or "smaller"
}

// FilterAction describes what a Gmail filter does to matching
// messages. Archive, MarkAsRead, Star, MarkAsSpam and Delete are
// conveniences expanded into the corresponding system labels.
type FilterAction struct {
	AddLabelIDs    []string
	RemoveLabelIDs []string
	Forward        string
	Archive        bool
	MarkAsRead     bool
	Star           bool
	MarkAsSpam     bool
	Delete         bool
}

// FilterInfo is a Gmail filter with its criteria and actions.
type FilterInfo struct {
	ID       string
	Criteria FilterCriteria
	Action   FilterAction
}

func (fc FilterCriteria) toAPI() *gmail.FilterCriteria {
	criteria := &gmail.FilterCriteria{
		From:          fc.From,
		To:            fc.To,
		Subject:       fc.Subject,
		Query:         fc.Query,
		HasAttachment: fc.HasAttachment,
	}
	if fc.Size > 0 {
		criteria.Size = fc.Size
		criteria.SizeComparison = fc.SizeComparison
	}
	return criteria
}

func (fa FilterAction) toAPI() *gmail.FilterAction {
	action := &gmail.FilterAction{
		AddLabelIds:    append([]string(nil), fa.AddLabelIDs...),
		RemoveLabelIds: append([]string(nil), fa.RemoveLabelIDs...),
		Forward:        fa.Forward,
	}
	if fa.Archive {
		action.RemoveLabelIds = append(action.RemoveLabelIds, "INBOX")
	}
	if fa.MarkAsRead {
		action.RemoveLabelIds = append(action.RemoveLabelIds, "UNREAD")
	}
	if fa.Star {
		action.AddLabelIds = append(action.AddLabelIds, "STARRED")
	}
	if fa.MarkAsSpam {
		action.AddLabelIds = append(action.AddLabelIds, "SPAM")
	}
	if fa.Delete {
		action.AddLabelIds = append(action.AddLabelIds, "TRASH")
	}
	return action
}

func filterInfoFromAPI(f *gmail.Filter) *FilterInfo {
	info := &FilterInfo{ID: f.Id}

	if f.Criteria != nil {
		info.Criteria = FilterCriteria{
			From:           f.Criteria.From,
			To:             f.Criteria.To,
			Subject:        f.Criteria.Subject,
			Query:          f.Criteria.Query,
			HasAttachment:  f.Criteria.HasAttachment,
			Size:           f.Criteria.Size,
			SizeComparison: f.Criteria.SizeComparison,
		}
	}

	if f.Action != nil {
		info.Action = FilterAction{
			AddLabelIDs:    f.Action.AddLabelIds,
			RemoveLabelIDs: f.Action.RemoveLabelIds,
			Forward:        f.Action.Forward,
		}
		for _, id := range f.Action.RemoveLabelIds {
			switch id {
			case "INBOX":
				info.Action.Archive = true
			case "UNREAD":
				info.Action.MarkAsRead = true
			}
		}
		for _, id := range f.Action.AddLabelIds {
			switch id {
			case "STARRED":
				info.Action.Star = true
			case "SPAM":
				info.Action.MarkAsSpam = true
			case "TRASH":
				info.Action.Delete = true
			}
		}
	}

	return info
}

// CreateFilter creates a new Gmail filter.
func (c *Client) CreateFilter(ctx context.Context, criteria FilterCriteria, action FilterAction) (*FilterInfo, error) {
	filter := &gmail.Filter{
		Criteria: criteria.toAPI(),
		Action:   action.toAPI(),
	}

	var created *gmail.Filter
	err := c.call(ctx, "create_filter", func(ctx context.Context) error {
		f, err := c.svc.Settings.Filters.Create("me", filter).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}
	return filterInfoFromAPI(created), nil
}

// ListFilters lists all Gmail filters for the user.
func (c *Client) ListFilters(ctx context.Context) ([]*FilterInfo, error) {
	var resp *gmail.ListFiltersResponse
	err := c.call(ctx, "list_filters", func(ctx context.Context) error {
		r, err := c.svc.Settings.Filters.List("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}

	filters := make([]*FilterInfo, 0, len(resp.Filter))
	for _, f := range resp.Filter {
		filters = append(filters, filterInfoFromAPI(f))
	}
	return filters, nil
}

// DeleteFilter deletes a filter by ID.
func (c *Client) DeleteFilter(ctx context.Context, filterID string) error {
	err := c.call(ctx, "delete_filter", func(ctx context.Context) error {
		return c.svc.Settings.Filters.Delete("me", filterID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete filter %s: %w", filterID, err)
	}
	return nil
}
