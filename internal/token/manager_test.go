package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsweeper/internal/events"
)

type fakeRefresher struct {
	mu          sync.Mutex
	refreshes   int32
	revokes     int32
	delay       time.Duration
	err         error
	accessToken string
	expiresIn   time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, time.Duration, error) {
	atomic.AddInt32(&f.refreshes, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", 0, f.err
	}
	return f.accessToken, f.expiresIn, nil
}

func (f *fakeRefresher) Revoke(ctx context.Context) error {
	atomic.AddInt32(&f.revokes, 1)
	return nil
}

func newTestManager(r Refresher, bus *events.Bus) *Manager {
	return NewManager(r, bus)
}

func TestAccessTokenRefreshesWhenCacheEmpty(t *testing.T) {
	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour}
	m := newTestManager(r, nil)

	tok, err := m.AccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, RefreshPresent, m.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.refreshes))
}

func TestAccessTokenReturnsCachedTokenWithoutRefresh(t *testing.T) {
	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour}
	m := newTestManager(r, nil)

	_, err := m.AccessToken(context.Background())
	require.NoError(t, err)

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.refreshes), "second call must hit the cache")
}

func TestAccessTokenRefreshesExpiredToken(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	nowFn := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Minute}
	m := NewManager(r, nil, WithClock(nowFn))

	_, err := m.AccessToken(context.Background())
	require.NoError(t, err)

	// Advance past the token lifetime.
	mu.Lock()
	clock = now.Add(2 * time.Minute)
	mu.Unlock()
	r.mu.Lock()
	r.accessToken = "tok-2"
	r.mu.Unlock()

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&r.refreshes))
}

func TestConcurrentAccessTokenCallsShareOneRefresh(t *testing.T) {
	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour, delay: 50 * time.Millisecond}
	m := newTestManager(r, nil)

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-1", tokens[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.refreshes),
		"concurrent callers must share a single outbound refresh")
}

func TestRefreshFailureRevokesAndClears(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(events.TopicToken)
	defer cancel()

	r := &fakeRefresher{err: errors.New("refresh rejected")}
	m := newTestManager(r, bus)

	_, err := m.AccessToken(context.Background())

	require.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, RefreshAbsent, m.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.revokes))

	_, ok := m.Peek()
	assert.False(t, ok, "cache must be cleared after a failed refresh")

	// Exactly one state-change notification for the failure.
	select {
	case ev := <-ch:
		assert.Equal(t, RefreshAbsent, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected a token state notification")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra notification: %+v", ev)
	default:
	}
}

func TestPrimeSeedsCacheAndNotifies(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(events.TopicToken)
	defer cancel()

	m := newTestManager(&fakeRefresher{}, bus)
	m.Prime("seeded", time.Hour)

	tok, ok := m.Peek()
	assert.True(t, ok)
	assert.Equal(t, "seeded", tok)
	assert.Equal(t, RefreshPresent, m.State())

	select {
	case ev := <-ch:
		assert.Equal(t, RefreshPresent, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected a token state notification")
	}
}

func TestPeekNeverTriggersRefresh(t *testing.T) {
	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour}
	m := newTestManager(r, nil)

	_, ok := m.Peek()

	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&r.refreshes))
}

func TestExpiryNeverMovesBackwards(t *testing.T) {
	m := newTestManager(&fakeRefresher{}, nil)

	m.Prime("tok-long", time.Hour)
	first := m.expiresAt

	m.Prime("tok-short", time.Minute)
	assert.Equal(t, first, m.expiresAt, "a shorter lifetime must not shrink expiry")

	m.Prime("tok-longer", 2*time.Hour)
	assert.True(t, m.expiresAt.After(first))
}

func TestInitializeProbesRefreshState(t *testing.T) {
	t.Run("probe success", func(t *testing.T) {
		r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour}
		m := newTestManager(r, nil)

		assert.Equal(t, RefreshUnknown, m.State())
		assert.Equal(t, RefreshPresent, m.Initialize(context.Background()))
	})

	t.Run("probe failure", func(t *testing.T) {
		r := &fakeRefresher{err: errors.New("no cookie")}
		m := newTestManager(r, nil)

		assert.Equal(t, RefreshAbsent, m.Initialize(context.Background()))
	})
}

func TestRevokeAndClearSwallowsRevokeErrors(t *testing.T) {
	r := &failingRevoker{fakeRefresher: fakeRefresher{accessToken: "tok", expiresIn: time.Hour}}
	m := newTestManager(r, nil)

	_, err := m.AccessToken(context.Background())
	require.NoError(t, err)

	m.RevokeAndClear(context.Background())

	_, ok := m.Peek()
	assert.False(t, ok)
	assert.Equal(t, RefreshAbsent, m.State())
}

type failingRevoker struct {
	fakeRefresher
}

func (f *failingRevoker) Revoke(ctx context.Context) error {
	return errors.New("network unreachable")
}

func TestSourceProducesBearerToken(t *testing.T) {
	r := &fakeRefresher{accessToken: "tok-1", expiresIn: time.Hour}
	m := newTestManager(r, nil)

	tok, err := m.Source().Token()

	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.After(time.Now()))
}
