package backoff

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type fakeInvalidator struct {
	calls int
	err   error
	token string
}

func (f *fakeInvalidator) ForceRefresh(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func apiError(code int) *googleapi.Error {
	return &googleapi.Error{Code: code, Message: "boom"}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRateLimitedUntilExhausted(t *testing.T) {
	calls := 0
	var retries []int
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry: func(attempt int, err error) {
			retries = append(retries, attempt)
		},
	}

	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return apiError(429)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "429 must be retried at most twice more after the first failure")
	assert.Equal(t, []int{1, 2}, retries)

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Code)
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apiError(503)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoFatalErrorPropagatesImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return apiError(404)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoAuthInvalidForcesRefreshWithUncountedRetry(t *testing.T) {
	inv := &fakeInvalidator{token: "fresh"}
	calls := 0

	err := Do(context.Background(), Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Invalidator: inv}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return apiError(401)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)
	// The post-refresh retry does not consume the single-attempt budget.
	assert.Equal(t, 2, calls)
}

func TestDoAuthRefreshFailureIsTerminal(t *testing.T) {
	refreshErr := errors.New("refresh token rejected")
	inv := &fakeInvalidator{err: refreshErr}
	calls := 0

	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Invalidator: inv}, func(ctx context.Context) error {
		calls++
		return apiError(401)
	})

	require.ErrorIs(t, err, refreshErr)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, inv.calls)
}

func TestDoRepeatedAuthFailureFallsBackToRetryBudget(t *testing.T) {
	inv := &fakeInvalidator{token: "fresh"}
	calls := 0

	err := Do(context.Background(), Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Invalidator: inv}, func(ctx context.Context) error {
		calls++
		return apiError(401)
	})

	require.Error(t, err)
	assert.Equal(t, 1, inv.calls, "only one forced refresh per operation")
	// Initial call + free retry + one counted retry.
	assert.Equal(t, 3, calls)
}

func TestDoAuthInvalidWithoutInvalidatorIsFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return apiError(401)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour, // never elapses; cancellation must win
		OnRetry: func(int, error) {
			cancel()
		},
	}

	err := Do(ctx, p, func(ctx context.Context) error {
		calls++
		return apiError(429)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayForGrowsExponentially(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond}.withDefaults()

	var previous time.Duration
	for attempt := 0; attempt < 4; attempt++ {
		d := p.delayFor(attempt)
		assert.Greater(t, d, previous, "delays must strictly increase")
		previous = d
	}
	assert.Equal(t, 100*time.Millisecond, p.delayFor(0))
	assert.Equal(t, 200*time.Millisecond, p.delayFor(1))
	assert.Equal(t, 400*time.Millisecond, p.delayFor(2))
}

func TestDoValueReturnsResult(t *testing.T) {
	got, err := DoValue(context.Background(), Policy{BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassFatal},
		{"429", apiError(429), ClassRateLimited},
		{"500", apiError(500), ClassTransient},
		{"503", apiError(503), ClassTransient},
		{"401", apiError(401), ClassAuthInvalid},
		{"404", apiError(404), ClassFatal},
		{"403 permission", apiError(403), ClassFatal},
		{
			"403 quota reason",
			&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}},
			ClassRateLimited,
		},
		{
			"403 quota message",
			&googleapi.Error{Code: 403, Message: "rateLimitExceeded for quota metric"},
			ClassRateLimited,
		},
		{"wrapped api error", fmt.Errorf("call failed: %w", apiError(429)), ClassRateLimited},
		{"network", &url.Error{Op: "Get", URL: "https://gmail.googleapis.com", Err: errors.New("connection reset")}, ClassTransient},
		{"status 500", &StatusError{Code: 502}, ClassTransient},
		{"status 401", &StatusError{Code: 401}, ClassAuthInvalid},
		{"status 400", &StatusError{Code: 400}, ClassFatal},
		{"plain error", errors.New("bad payload"), ClassFatal},
		{"canceled", context.Canceled, ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
