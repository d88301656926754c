package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"

	"github.com/google/uuid"
)

// AuthHandler handles session lifecycle requests
type AuthHandler struct {
	authService domain.AuthService
	sessions    *service.SessionRegistry
	logger      domain.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService domain.AuthService, sessions *service.SessionRegistry, logger domain.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

type startDemoRequest struct {
	DeviceID string `json:"device_id"`
}

type startDemoResponse struct {
	Account  *domain.Account      `json:"account"`
	DeviceID string               `json:"device_id"`
	Usage    domain.UsageSnapshot `json:"usage"`
}

// StartDemo issues a demo identity. The device id comes from X-Device-ID or
// the body; a new one is generated when the client has none yet.
func (h *AuthHandler) StartDemo(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.Header.Get(headerDeviceID))
	if deviceID == "" && r.ContentLength != 0 {
		var req startDemoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		deviceID = strings.TrimSpace(req.DeviceID)
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	account := h.authService.StartDemo(deviceID)
	gate := h.sessions.Acquire(account)
	usage := gate.Load(r.Context())

	writeJSON(w, http.StatusCreated, startDemoResponse{
		Account:  gate.Account(),
		DeviceID: deviceID,
		Usage:    usage,
	})
}

// Me returns the current account with its resolved tier
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	gate, ok := GetGateFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	gate.Ensure(r.Context())
	writeJSON(w, http.StatusOK, gate.Account())
}

// Logout ends the server-side session; cached usage and entitlement are dropped.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account, ok := GetAccountFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	h.sessions.Logout(account.ID)
	h.logger.Info("Session logged out", "account_id", account.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
