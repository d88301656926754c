package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Handlers groups the route handlers NewRouter mounts.
type Handlers struct {
	Auth         *AuthHandler
	Usage        *UsageHandler
	Chat         *ChatHandler
	Subscription *SubscriptionHandler
	Admin        *AdminHandler
	// Metrics serves the Prometheus scrape endpoint; nil disables /metrics.
	Metrics http.Handler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, authMiddleware func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"mikasa-gate"}`))
	}).Methods("GET")

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods("GET")
	}

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/demo", h.Auth.StartDemo).Methods("POST")

	// Admin routes carry their own secret check
	api.HandleFunc("/admin/users/{id}/subscription", h.Admin.GrantSubscription).Methods("PUT")

	// Protected routes (require a Supabase token or a demo account)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/auth/me", h.Auth.Me).Methods("GET")
	protected.HandleFunc("/auth/logout", h.Auth.Logout).Methods("POST")

	protected.HandleFunc("/usage", h.Usage.GetUsage).Methods("GET")
	protected.HandleFunc("/usage/gate", h.Usage.CheckGate).Methods("GET")

	protected.HandleFunc("/chat", h.Chat.Send).Methods("POST")

	protected.HandleFunc("/subscription", h.Subscription.GetSubscription).Methods("GET")
	protected.HandleFunc("/subscription", h.Subscription.Subscribe).Methods("POST")
	protected.HandleFunc("/subscription", h.Subscription.Cancel).Methods("DELETE")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			headerDemoAccount,
			headerDeviceID,
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
