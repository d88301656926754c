package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_StatusAndType(t *testing.T) {
	cause := stderrors.New("timeout")
	tests := []struct {
		err    *AppError
		status int
		typ    ErrorType
	}{
		{NewValidationError("bad", "prompt"), http.StatusBadRequest, ErrorTypeValidation},
		{NewNotFoundError("missing"), http.StatusNotFound, ErrorTypeNotFound},
		{NewUnauthorizedError("no"), http.StatusUnauthorized, ErrorTypeUnauthorized},
		{NewQuotaError("limit", "QUOTA_EXCEEDED"), http.StatusTooManyRequests, ErrorTypeQuota},
		{NewPaymentRequiredError("pay", cause), http.StatusPaymentRequired, ErrorTypePayment},
		{NewNetworkError("down", cause), http.StatusServiceUnavailable, ErrorTypeNetwork},
		{NewInternalError("oops", cause), http.StatusInternalServerError, ErrorTypeInternal},
	}

	for _, tt := range tests {
		if tt.err.StatusCode != tt.status || tt.err.Type != tt.typ {
			t.Fatalf("unexpected mapping for %v: %d %s", tt.err, tt.err.StatusCode, tt.err.Type)
		}
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("timeout")
	wrapped := fmt.Errorf("handler: %w", NewNetworkError("down", cause))

	if !stderrors.Is(wrapped, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !IsType(wrapped, ErrorTypeNetwork) {
		t.Fatalf("expected network type")
	}
	if GetStatusCode(wrapped) != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", GetStatusCode(wrapped))
	}
	if GetStatusCode(cause) != http.StatusInternalServerError {
		t.Fatalf("plain errors map to 500")
	}
}

func TestAppError_Error(t *testing.T) {
	if got := NewQuotaError("limit", "QUOTA_EXCEEDED").Error(); got != "quota: limit (QUOTA_EXCEEDED)" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := NewNotFoundError("missing").Error(); got != "not_found: missing" {
		t.Fatalf("unexpected message %q", got)
	}
}
