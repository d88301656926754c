package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mikasa-gate/internal/domain"
)

func newTestMiddleware(t *testing.T) (*handlerFixture, func(http.Handler) http.Handler) {
	f := newHandlerFixture(t)
	return f, NewAuthMiddleware(f.auth, f.sessions, NewMockHandlerLogger()).Middleware
}

func rejectingHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("expected handler not to be called")
	})
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	_, middleware := newTestMiddleware(t)
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Authorization header required") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_InvalidFormat(t *testing.T) {
	_, middleware := newTestMiddleware(t)
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid authorization header format") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_EmptyToken(t *testing.T) {
	_, middleware := newTestMiddleware(t)
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Token required") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	f, middleware := newTestMiddleware(t)
	f.auth.err = errors.New("bad token")
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid token") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
	if f.auth.lastToken != "token-1" {
		t.Fatalf("expected token token-1, got %s", f.auth.lastToken)
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	f, middleware := newTestMiddleware(t)

	called := false
	h := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		account, ok := GetAccountFromContext(r)
		if !ok || account == nil {
			t.Fatalf("expected account in context")
		}
		if account.ID != testUserID || account.AccessToken != "token-1" || account.IsDemo {
			t.Fatalf("unexpected account: %+v", account)
		}
		gate, ok := GetGateFromContext(r)
		if !ok || gate == nil {
			t.Fatalf("expected gate in context")
		}
		if gate.Account().ID != testUserID {
			t.Fatalf("gate bound to wrong account: %s", gate.Account().ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected one hosted session, got %d", f.sessions.Len())
	}
}

func TestAuthMiddleware_ReusesGateAcrossRequests(t *testing.T) {
	f, middleware := newTestMiddleware(t)

	var gates []interface{}
	h := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gate, _ := GetGateFromContext(r)
		gates = append(gates, gate)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(gates) != 2 || gates[0] != gates[1] {
		t.Fatalf("expected the same gate for both requests")
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected one hosted session, got %d", f.sessions.Len())
	}
}

func TestAuthMiddleware_DemoAccount(t *testing.T) {
	f, middleware := newTestMiddleware(t)
	demo := f.auth.StartDemo("device-1")

	h := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := GetAccountFromContext(r)
		if !ok {
			t.Fatalf("expected account in context")
		}
		if !account.IsDemo || account.ID != demo.ID || account.DeviceID != "device-1" {
			t.Fatalf("unexpected account: %+v", account)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerDemoAccount, demo.ID)
	req.Header.Set(headerDeviceID, "device-1")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rr.Code, rr.Body.String())
	}
}

func TestAuthMiddleware_ExpiredDemo(t *testing.T) {
	f, middleware := newTestMiddleware(t)
	demo := domain.NewDemoAccount("device-1", testNow.Add(-25*time.Hour))
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerDemoAccount, demo.ID)
	req.Header.Set(headerDeviceID, "device-1")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Demo session expired") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("expected no hosted session, got %d", f.sessions.Len())
	}
}

func TestAuthMiddleware_MalformedDemo(t *testing.T) {
	_, middleware := newTestMiddleware(t)
	h := middleware(rejectingHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerDemoAccount, "demo_not-a-ulid")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid token") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}
