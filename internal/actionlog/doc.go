// Package actionlog persists the durable bookkeeping for sweep
// operations in a local SQLite database.
//
// It records three kinds of state:
//
//   - Sender actions: an append-only log of per-sender decisions
//     (delete, mark read, unsubscribe). Actions are queued as pending
//     and completed when the corresponding job finishes, so a restart
//     never loses track of what was requested.
//   - Analysis runs: progress and heartbeat of mailbox analysis jobs.
//     A run whose heartbeat goes stale is marked interrupted on the
//     next startup instead of appearing to run forever.
//   - Stats cache: mailbox statistics cached with a TTL to avoid
//     refetching profile data on every estimate.
//
// The store publishes change notifications on the events bus so
// connected clients can observe action state without polling.
package actionlog
