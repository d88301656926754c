package config

import (
	"os"
	"strings"
	"time"
	_ "time/tzdata" // USAGE_TIMEZONE must resolve in minimal images

	"mikasa-gate/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort             string
	LogLevel               string
	LogFormat              string
	SupabaseURL            string
	SupabaseKey            string
	SupabaseServiceRoleKey string
	JWTSecret              string
	AdminSecret            string
	LocalStorePath         string
	SubscriptionTimeout    time.Duration
	UsageTimeout           time.Duration
	UsageLocation          *time.Location
	SessionIdleTTL         time.Duration
	GCPProjectID           string
	GCPLocation            string
	ChatModel              string
	AllowedOrigins         []string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:             getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "json"),
		SupabaseURL:            getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:            getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseServiceRoleKey: getEnvOrDefault("SUPABASE_SERVICE_ROLE_KEY", ""),
		JWTSecret:              getEnvOrDefault("JWT_SECRET", ""),
		AdminSecret:            getEnvOrDefault("ADMIN_API_SECRET", ""),
		LocalStorePath:         getEnvOrDefault("LOCAL_STORE_PATH", "./data/local_store.db"),
		SubscriptionTimeout:    getEnvDurationOrDefault("SUBSCRIPTION_TIMEOUT", 5*time.Second),
		UsageTimeout:           getEnvDurationOrDefault("USAGE_TIMEOUT", 5*time.Second),
		UsageLocation:          getEnvLocationOrDefault("USAGE_TIMEZONE", time.UTC),
		SessionIdleTTL:         getEnvDurationOrDefault("SESSION_IDLE_TTL", 30*time.Minute),
		GCPProjectID:           getEnvOrDefault("GCP_PROJECT_ID", ""),
		GCPLocation:            getEnvOrDefault("GCP_LOCATION", "us-central1"),
		ChatModel:              getEnvOrDefault("CHAT_MODEL", "gemini-2.0-flash-001"),
		AllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173", // Vite dev server
			"http://localhost:4173", // Vite preview
			"http://localhost:3000", // Alternative dev port
		}),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFormat returns the log output format (json or console)
func (c *AppConfig) GetLogFormat() string {
	return c.LogFormat
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseServiceRoleKey returns the Supabase service role key used by admin tooling
func (c *AppConfig) GetSupabaseServiceRoleKey() string {
	return c.SupabaseServiceRoleKey
}

// GetJWTSecret returns the JWT secret key. Empty means tokens are verified by Supabase Auth.
func (c *AppConfig) GetJWTSecret() string {
	return c.JWTSecret
}

// GetAdminSecret returns the shared secret for admin endpoints
func (c *AppConfig) GetAdminSecret() string {
	return c.AdminSecret
}

// GetLocalStorePath returns the path of the embedded local store. ":memory:" keeps it in-process.
func (c *AppConfig) GetLocalStorePath() string {
	return c.LocalStorePath
}

// GetSubscriptionTimeout bounds the remote subscription lookup
func (c *AppConfig) GetSubscriptionTimeout() time.Duration {
	return c.SubscriptionTimeout
}

// GetUsageTimeout bounds remote usage reads and increments
func (c *AppConfig) GetUsageTimeout() time.Duration {
	return c.UsageTimeout
}

// GetUsageLocation returns the timezone calendar days are counted in
func (c *AppConfig) GetUsageLocation() *time.Location {
	return c.UsageLocation
}

// GetSessionIdleTTL returns how long an idle session gate is kept in memory
func (c *AppConfig) GetSessionIdleTTL() time.Duration {
	return c.SessionIdleTTL
}

// GetGCPProjectID returns the Vertex AI project
func (c *AppConfig) GetGCPProjectID() string {
	return c.GCPProjectID
}

// GetGCPLocation returns the Vertex AI region
func (c *AppConfig) GetGCPLocation() string {
	return c.GCPLocation
}

// GetChatModel returns the chat completion model name
func (c *AppConfig) GetChatModel() string {
	return c.ChatModel
}

// GetAllowedOrigins returns the CORS allow list
func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvLocationOrDefault(key string, defaultValue *time.Location) *time.Location {
	if value := os.Getenv(key); value != "" {
		if loc, err := time.LoadLocation(value); err == nil {
			return loc
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
