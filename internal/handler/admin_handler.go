package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"

	"github.com/gorilla/mux"
)

// AdminHandler exposes admin-only endpoints protected by X-Admin-Secret.
// These endpoints are intended for internal use (support tooling) and should not be exposed publicly without additional safeguards.
type AdminHandler struct {
	subscriptions *service.SubscriptionService
	sessions      *service.SessionRegistry
	adminSecret   string
	logger        domain.Logger
}

func NewAdminHandler(subscriptions *service.SubscriptionService, sessions *service.SessionRegistry, adminSecret string, logger domain.Logger) *AdminHandler {
	return &AdminHandler{
		subscriptions: subscriptions,
		sessions:      sessions,
		adminSecret:   adminSecret,
		logger:        logger,
	}
}

type grantSubscriptionRequest struct {
	PlanType string `json:"plan_type"`
	Days     int    `json:"days"`
}

// GrantSubscription sets a user's plan without checkout.
//
// Auth: requires `X-Admin-Secret` header matching env `ADMIN_API_SECRET`.
// DB: writes through the service role client to bypass RLS.
func (h *AdminHandler) GrantSubscription(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Admin-Secret")
	if h.adminSecret == "" || secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.adminSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID := mux.Vars(r)["id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User id is required")
		return
	}

	var req grantSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	plan, valid := domain.ParsePlanType(req.PlanType)
	if !valid {
		writeAppError(w, domain.ErrInvalidPlan, nil)
		return
	}

	sub, err := h.subscriptions.Grant(r.Context(), userID, plan, req.Days)
	if err != nil {
		h.logger.Error("Failed to grant subscription", err, "user_id", userID)
		writeAppError(w, err, nil)
		return
	}
	h.sessions.Reset(userID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"plan_type":    plan,
		"subscription": sub,
	})
}
