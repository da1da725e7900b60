package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teemow/inboxsweeper/internal/token"
)

type fakeRefresher struct {
	token string
	err   error
}

func (f fakeRefresher) Refresh(context.Context) (string, time.Duration, error) {
	return f.token, time.Hour, f.err
}

func (f fakeRefresher) Revoke(context.Context) error { return nil }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decodeHealth(t, rec); resp.Status != healthStatusOK {
		t.Errorf("liveness body status = %q, want %q", resp.Status, healthStatusOK)
	}
}

func TestReadinessHandler_Ready(t *testing.T) {
	h := NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("readiness status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["token"] != string(token.RefreshUnknown) {
		t.Errorf("token check = %q, want %q", resp.Checks["token"], token.RefreshUnknown)
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["ready"] != healthStatusNotReady {
		t.Errorf("ready check = %q, want %q", resp.Checks["ready"], healthStatusNotReady)
	}
}

func TestReadinessHandler_ShuttingDown(t *testing.T) {
	sc := NewServerContext(context.Background(), nil, nil, nil, nil)
	h := NewHealthChecker(sc)

	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["shutdown"] != healthStatusShuttingDown {
		t.Errorf("shutdown check = %q, want %q", resp.Checks["shutdown"], healthStatusShuttingDown)
	}
}

func TestReadinessHandler_TokenAbsent(t *testing.T) {
	tokens := token.NewManager(fakeRefresher{err: errors.New("no refresh token")}, nil)
	tokens.Initialize(context.Background())

	sc := NewServerContext(context.Background(), nil, tokens, nil, nil)
	h := NewHealthChecker(sc)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["token"] != string(token.RefreshAbsent) {
		t.Errorf("token check = %q, want %q", resp.Checks["token"], token.RefreshAbsent)
	}
}

func TestDetailedHealthHandler(t *testing.T) {
	tokens := token.NewManager(fakeRefresher{token: "ya29.test"}, nil)
	tokens.Initialize(context.Background())

	sc := NewServerContext(context.Background(), nil, tokens, nil, nil)
	h := NewHealthChecker(sc)

	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("detailed health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp DetailedHealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != healthStatusOK {
		t.Errorf("detailed status = %q, want %q", resp.Status, healthStatusOK)
	}
	if resp.TokenState != string(token.RefreshPresent) {
		t.Errorf("token state = %q, want %q", resp.TokenState, token.RefreshPresent)
	}
	if resp.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
}

func TestRegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker(nil)
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
