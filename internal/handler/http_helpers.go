package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"
	apperrors "mikasa-gate/pkg/errors"
)

type contextKey string

const (
	accountContextKey contextKey = "account"
	gateContextKey    contextKey = "gate"
)

// GetAccountFromContext extracts the authenticated account from request context
func GetAccountFromContext(r *http.Request) (*domain.Account, bool) {
	account, ok := r.Context().Value(accountContextKey).(*domain.Account)
	return account, ok
}

// GetGateFromContext extracts the account's session gate from request context
func GetGateFromContext(r *http.Request) (*service.SessionGate, bool) {
	gate, ok := r.Context().Value(gateContextKey).(*service.SessionGate)
	return gate, ok
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAppError renders err with the status of its AppError mapping.
// Extra fields are merged into the body.
func writeAppError(w http.ResponseWriter, err error, extra map[string]interface{}) {
	appErr := toAppError(err)
	body := map[string]interface{}{
		"error": appErr.Message,
		"type":  appErr.Type,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, appErr.StatusCode, body)
}

// toAppError maps domain errors to their HTTP representation.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var denied *domain.DeniedError
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &denied):
		if denied.Decision.Reason == domain.DenyNotLoggedIn {
			return apperrors.NewUnauthorizedError(denied.Decision.Message())
		}
		return apperrors.NewQuotaError(denied.Decision.Message(), string(denied.Decision.Reason))
	case errors.As(err, &validation):
		return apperrors.NewValidationError(validation.Message, validation.Field)
	case errors.Is(err, domain.ErrDemoAccountExpired):
		return apperrors.NewUnauthorizedError("Demo session expired")
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrInvalidDemoAccount):
		return apperrors.NewUnauthorizedError("Invalid token")
	case errors.Is(err, domain.ErrDemoCannotSubscribe):
		return apperrors.NewPaymentRequiredError("Register an account to subscribe", err)
	case errors.Is(err, domain.ErrInvalidPlan):
		return apperrors.NewValidationError("Invalid plan", err.Error())
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return apperrors.NewNotFoundError("Subscription not found")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError("User not found")
	case errors.Is(err, domain.ErrChatServiceUnavailable), errors.Is(err, domain.ErrStoreNotInitialized):
		return apperrors.NewNetworkError("Service unavailable", err)
	case errors.Is(err, domain.ErrChatCompletionFailed):
		return apperrors.NewNetworkError("Chat completion failed", err)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}
