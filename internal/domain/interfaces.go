package domain

import (
	"context"
	"time"
)

// KeyValueStore is synchronous, origin-scoped durable storage (the browser's
// local storage in the web client). Get reports ok=false for a missing key.
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// UsageStore reads and bumps today's message count for one account.
// Implementations are chosen once per session by Account.IsDemo.
type UsageStore interface {
	TodayCount(ctx context.Context, account *Account) (int, error)
	Increment(ctx context.Context, account *Account) error
}

// RemoteUsageRepository is the server-side per-(user, day) counter.
type RemoteUsageRepository interface {
	CheckUsage(ctx context.Context, userID string, token string) (*UsageSnapshot, error)
	// IncrementUsage bumps today's counter atomically on the server.
	IncrementUsage(ctx context.Context, userID string, token string) (bool, error)
}

// SubscriptionRepository persists subscription rows.
type SubscriptionRepository interface {
	// GetLatest returns the most recent row for the user, or nil when none exists.
	GetLatest(ctx context.Context, userID string, token string) (*Subscription, error)
	// Create deactivates any active rows for the user, then inserts sub.
	Create(ctx context.Context, sub *Subscription, token string) error
	CancelActive(ctx context.Context, userID string, token string) error
}

// SessionProvider exposes the current identity and notifies on login/logout.
type SessionProvider interface {
	CurrentAccount() *Account
	Subscribe(fn func(*Account)) (unsubscribe func())
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetLogFormat() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseServiceRoleKey() string
	GetJWTSecret() string
	GetAdminSecret() string
	GetLocalStorePath() string
	GetSubscriptionTimeout() time.Duration
	GetUsageTimeout() time.Duration
	GetUsageLocation() *time.Location
	GetSessionIdleTTL() time.Duration
	GetGCPProjectID() string
	GetGCPLocation() string
	GetChatModel() string
	GetAllowedOrigins() []string
}
