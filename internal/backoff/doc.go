// Package backoff implements retry with exponential backoff for outbound
// API calls.
//
// Every Gmail request the application makes is issued through Do (or
// DoValue), which gives all operations a uniform retry policy:
//
//   - Rate limiting (HTTP 429, or Gmail's 403 quota variants) and
//     transient failures (5xx, network errors) are retried with an
//     exponentially growing delay, up to a bounded number of attempts.
//   - HTTP 401 is treated as token invalidation: the configured token
//     invalidator is asked for a forced refresh and the operation is
//     retried once without consuming the retry budget.
//   - Anything else is fatal and propagates immediately.
//
// Attempt counts and base delays are policy, not contract; callers tune
// them per operation through Policy.
package backoff
