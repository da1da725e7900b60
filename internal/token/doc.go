// Package token owns the in-memory Gmail access-token cache and its
// refresh lifecycle.
//
// The Manager is the only component that mutates token state. Callers
// ask it for a valid access token; if the cached token is expired the
// manager refreshes it through the configured Refresher. Concurrent
// callers during an in-flight refresh share a single underlying refresh
// call and a single outcome (singleflight).
//
// Refresh-state is a tri-value (unknown, present, absent) describing
// whether a refresh token is believed to exist on the server side. Every
// transition publishes on the events bus so connection-status UI can
// react without polling.
//
// A failed refresh is terminal for the session: the manager revokes and
// clears everything, flips refresh-state to absent, and returns
// ErrAuthExpired so the caller can prompt for re-authentication exactly
// once.
package token
