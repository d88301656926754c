package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mikasa-gate/internal/domain"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "nope")

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %s", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"nope"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"quota", domain.DenyQuota(10, 10).Err(), http.StatusTooManyRequests},
		{"not logged in", domain.DenyNotLoggedInDecision().Err(), http.StatusUnauthorized},
		{"validation", &domain.ValidationError{Field: "prompt", Message: "prompt is required"}, http.StatusBadRequest},
		{"demo expired", domain.ErrDemoAccountExpired, http.StatusUnauthorized},
		{"wrapped invalid token", fmt.Errorf("invalid token: %w", domain.ErrInvalidToken), http.StatusUnauthorized},
		{"demo subscribe", domain.ErrDemoCannotSubscribe, http.StatusPaymentRequired},
		{"invalid plan", domain.ErrInvalidPlan, http.StatusBadRequest},
		{"no subscription", domain.ErrSubscriptionNotFound, http.StatusNotFound},
		{"chat unavailable", domain.ErrChatServiceUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toAppError(tt.err).StatusCode; got != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, got)
			}
		})
	}
}

func TestWriteAppError_MergesExtra(t *testing.T) {
	rr := httptest.NewRecorder()
	decision := domain.DenyQuota(10, 10)
	writeAppError(rr, decision.Err(), map[string]interface{}{"decision": decision})

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"type":"quota"`) || !strings.Contains(body, `"reason":"QUOTA_EXCEEDED"`) {
		t.Fatalf("unexpected response body: %s", body)
	}
}
