package handler

import (
	"encoding/json"
	"net/http"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"
)

// SubscriptionHandler exposes the mock checkout
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	sessions      *service.SessionRegistry
	logger        domain.Logger
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService, sessions *service.SessionRegistry, logger domain.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		sessions:      sessions,
		logger:        logger,
	}
}

type subscribeRequest struct {
	PlanType string `json:"plan_type"`
}

// GetSubscription returns the latest subscription row of the caller
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	account, ok := GetAccountFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	if account.IsDemo {
		writeAppError(w, domain.ErrSubscriptionNotFound, nil)
		return
	}

	sub, err := h.subscriptions.Current(r.Context(), account.ID, account.AccessToken)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Subscribe runs a mock checkout and resets the caller's gate
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	account, ok := GetAccountFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	plan, valid := domain.ParsePlanType(req.PlanType)
	if !valid {
		writeAppError(w, domain.ErrInvalidPlan, nil)
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), account, plan)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	h.sessions.Reset(account.ID)
	writeJSON(w, http.StatusCreated, sub)
}

// Cancel ends the caller's active subscription
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	account, ok := GetAccountFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	if account.IsDemo {
		writeAppError(w, domain.ErrDemoCannotSubscribe, nil)
		return
	}

	if err := h.subscriptions.Cancel(r.Context(), account.ID, account.AccessToken); err != nil {
		writeAppError(w, err, nil)
		return
	}
	h.sessions.Reset(account.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription cancelled"})
}
