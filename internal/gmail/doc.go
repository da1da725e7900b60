// Package gmail provides a client for bulk operations against the
// Gmail API.
//
// The client is built for sweeping large mailboxes:
//   - Paged message ID listing by search query
//   - Batch label modification (add/remove, trash, mark read)
//   - Label lookup and creation
//   - Gmail filter management
//   - Unsubscribe link detection and execution
//
// Every API call is rate limited and wrapped in the retry policy from
// the backoff package, so transient Gmail errors and quota responses
// are absorbed without surfacing to callers. Authentication is
// delegated to an oauth2.TokenSource, typically backed by the token
// package's Manager.
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := gmail.NewClient(ctx, mgr.Source())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ids, err := client.ListMessageIDs(ctx, "from:newsletter@example.com", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = client.BatchModify(ctx, ids, []string{"TRASH"}, []string{"INBOX"})
package gmail
