package handler

import (
	"context"
	"net/http"
	"strings"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"
)

const (
	headerDemoAccount = "X-Demo-Account"
	headerDeviceID    = "X-Device-ID"
)

// AuthMiddleware resolves the caller to an account and attaches its session gate.
// Callers authenticate with a Supabase JWT or a demo id bound to a device.
type AuthMiddleware struct {
	authService domain.AuthService
	sessions    *service.SessionRegistry
	logger      domain.Logger
}

func NewAuthMiddleware(authService domain.AuthService, sessions *service.SessionRegistry, logger domain.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := m.authenticate(w, r)
		if !ok {
			return
		}

		gate := m.sessions.Acquire(account)
		ctx := context.WithValue(r.Context(), accountContextKey, account)
		ctx = context.WithValue(ctx, gateContextKey, gate)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if demoID := r.Header.Get(headerDemoAccount); demoID != "" {
			return m.authenticateDemo(w, demoID, r.Header.Get(headerDeviceID))
		}
		writeError(w, http.StatusUnauthorized, "Authorization header required")
		return nil, false
	}

	// Extract token from "Bearer <token>" format
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
		return nil, false
	}

	token := parts[1]
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Token required")
		return nil, false
	}

	user, err := m.authService.ValidateToken(token)
	if err != nil {
		m.logger.Warn("Token validation failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return nil, false
	}
	return domain.AccountFromUser(user, token), true
}

func (m *AuthMiddleware) authenticateDemo(w http.ResponseWriter, demoID, deviceID string) (*domain.Account, bool) {
	account, err := m.authService.ParseDemo(demoID, deviceID)
	if err != nil {
		m.logger.Debug("Demo account rejected", "error", err, "device_id", deviceID)
		writeAppError(w, err, nil)
		return nil, false
	}
	return account, true
}
