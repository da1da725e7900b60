package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/inboxsweeper/internal/events"
	"github.com/teemow/inboxsweeper/internal/logging"
)

// ErrAuthExpired indicates the refresh call failed and the session needs
// re-authentication. The manager has already revoked and cleared local
// state by the time this is returned.
var ErrAuthExpired = errors.New("authentication expired")

// RefreshState describes whether a server-side refresh token is believed
// to exist.
type RefreshState string

const (
	RefreshUnknown RefreshState = "unknown"
	RefreshPresent RefreshState = "present"
	RefreshAbsent  RefreshState = "absent"
)

// expirySkew is subtracted from the token lifetime when judging
// validity, so a token about to expire mid-request is refreshed early.
const expirySkew = 30 * time.Second

// Refresher exchanges the ambient refresh credential for a new access
// token, and revokes it. Implemented by EndpointRefresher in production
// and by fakes in tests.
type Refresher interface {
	Refresh(ctx context.Context) (accessToken string, expiresIn time.Duration, err error)
	Revoke(ctx context.Context) error
}

// Manager caches the access token and serializes refreshes.
type Manager struct {
	refresher Refresher
	bus       *events.Bus
	logger    *slog.Logger
	now       func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	state       RefreshState
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager in the unknown refresh state.
func NewManager(refresher Refresher, bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		refresher: refresher,
		bus:       bus,
		logger:    slog.Default(),
		now:       time.Now,
		state:     RefreshUnknown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize probes for a usable refresh credential at startup, moving
// the state from unknown to present or absent. Probe failures are not
// errors; they just mean the user has to sign in.
func (m *Manager) Initialize(ctx context.Context) RefreshState {
	if _, err := m.refresh(ctx); err != nil {
		m.logger.Debug("startup token probe failed", logging.Err(err))
	}
	return m.State()
}

// AccessToken returns a valid access token, refreshing if the cached one
// is missing or expired. Concurrent callers during a refresh await the
// same underlying call.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	tok, ok := m.validLocked()
	m.mu.Unlock()
	if ok {
		return tok, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh bypasses the cache unconditionally. Used before long
// operations when expiry is imminent, and by the backoff wrapper after a
// 401.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	return m.refresh(ctx)
}

// Prime seeds the cache immediately after an authorization-code
// exchange and marks the refresh credential present.
func (m *Manager) Prime(accessToken string, expiresIn time.Duration) {
	m.mu.Lock()
	m.accessToken = accessToken
	m.bumpExpiryLocked(expiresIn)
	changed := m.setStateLocked(RefreshPresent)
	m.mu.Unlock()

	if changed {
		m.publishState(RefreshPresent)
	}
}

// Peek returns the cached token without triggering a refresh. The
// second return value reports whether the token is present and valid.
// Safe for callers that must not block.
func (m *Manager) Peek() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

// State returns the current refresh-state.
func (m *Manager) State() RefreshState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RevokeAndClear revokes the refresh credential server-side (best
// effort; network errors are swallowed) and unconditionally clears
// local state.
func (m *Manager) RevokeAndClear(ctx context.Context) {
	if err := m.refresher.Revoke(ctx); err != nil {
		m.logger.Warn("token revocation failed, clearing local state anyway", logging.Err(err))
	}
	m.clear()
}

// Source adapts the manager to oauth2.TokenSource so generated Google
// API clients authenticate through it.
func (m *Manager) Source() oauth2.TokenSource {
	return managerSource{m: m}
}

type managerSource struct {
	m *Manager
}

func (s managerSource) Token() (*oauth2.Token, error) {
	tok, err := s.m.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	expiry := s.m.expiresAt
	s.m.mu.Unlock()
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}

// refresh performs a single-flight token refresh. All concurrent callers
// share one network call and one outcome.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		accessToken, expiresIn, err := m.refresher.Refresh(ctx)
		if err != nil {
			m.logger.Warn("token refresh failed", logging.Err(err))
			m.RevokeAndClear(ctx)
			return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}

		m.mu.Lock()
		m.accessToken = accessToken
		m.bumpExpiryLocked(expiresIn)
		changed := m.setStateLocked(RefreshPresent)
		m.mu.Unlock()

		if changed {
			m.publishState(RefreshPresent)
		}
		m.logger.Debug("access token refreshed",
			slog.String("token", logging.SanitizeToken(accessToken)),
			slog.Duration("expires_in", expiresIn))
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.accessToken = ""
	m.expiresAt = time.Time{}
	changed := m.setStateLocked(RefreshAbsent)
	m.mu.Unlock()

	if changed {
		m.publishState(RefreshAbsent)
	}
}

// validLocked reports the cached token if it has not passed the skewed
// expiry. Callers must hold mu.
func (m *Manager) validLocked() (string, bool) {
	if m.accessToken == "" {
		return "", false
	}
	if !m.now().Add(expirySkew).Before(m.expiresAt) {
		return "", false
	}
	return m.accessToken, true
}

// bumpExpiryLocked advances expiresAt. Expiry never moves backwards
// across successful refreshes. Callers must hold mu.
func (m *Manager) bumpExpiryLocked(expiresIn time.Duration) {
	next := m.now().Add(expiresIn)
	if next.After(m.expiresAt) {
		m.expiresAt = next
	}
}

func (m *Manager) setStateLocked(next RefreshState) bool {
	if m.state == next {
		return false
	}
	m.state = next
	return true
}

func (m *Manager) publishState(state RefreshState) {
	if m.bus != nil {
		m.bus.Publish(events.TopicToken, "token", state)
	}
}
