package config

import (
	"context"
	"errors"
	"fmt"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/infra/supabase"
	"mikasa-gate/internal/metrics"
	"mikasa-gate/internal/repository"
	"mikasa-gate/internal/service"
	"mikasa-gate/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient
	Clock          service.SystemClock

	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.Metrics

	LocalStore                  domain.KeyValueStore
	SubscriptionRepository      domain.SubscriptionRepository
	AdminSubscriptionRepository domain.SubscriptionRepository
	UsageRepository             domain.RemoteUsageRepository
	AdminUsageRepository        domain.RemoteUsageRepository
	// ChatCompleter is nil when no GCP project is configured.
	ChatCompleter domain.ChatCompleter

	AuthService         domain.AuthService
	EntitlementResolver *service.EntitlementResolver
	UsageStores         service.UsageStoreFactory
	Sessions            *service.SessionRegistry
	SubscriptionService *service.SubscriptionService
	ChatService         *service.ChatService

	closers []func() error
}

// NewContainer creates a new dependency injection container. Remote
// collaborators that are not configured are logged and left to fail open.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLoggerWithFormat(cfg.GetLogLevel(), cfg.GetLogFormat())
	clock := service.NewSystemClock(cfg.GetUsageLocation())

	// Initialize Supabase client
	supabaseClient := supabase.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		appLogger.Warn("Supabase unavailable, subscriptions and usage fall back to free tier", "error", err)
	}
	adminClient := supabase.AsServiceRole(supabaseClient)

	registry := prometheus.NewRegistry()
	for _, collector := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
		}
	}
	appMetrics := metrics.New(registry)

	c := &Container{
		Config:          cfg,
		Logger:          appLogger,
		SupabaseClient:  supabaseClient,
		Clock:           clock,
		MetricsRegistry: registry,
		Metrics:         appMetrics,
	}

	// Demo usage survives restarts only with the SQLite store; memory keeps
	// the server up when the data directory is not writable.
	if sqliteStore, err := repository.NewSQLiteKeyValueStore(cfg.GetLocalStorePath(), appLogger); err != nil {
		appLogger.Warn("Local store unavailable, keeping demo usage in memory", "error", err)
		c.LocalStore = repository.NewMemoryKeyValueStore()
	} else {
		c.LocalStore = sqliteStore
		c.closers = append(c.closers, sqliteStore.Close)
	}
	localStore := c.LocalStore

	// Initialize repositories
	c.SubscriptionRepository = repository.NewSupabaseSubscriptionRepository(supabaseClient, appLogger)
	c.AdminSubscriptionRepository = repository.NewSupabaseSubscriptionRepository(adminClient, appLogger)
	c.UsageRepository = repository.NewSupabaseUsageRepository(supabaseClient, appLogger)
	c.AdminUsageRepository = repository.NewSupabaseUsageRepository(adminClient, appLogger)

	if cfg.GetGCPProjectID() != "" {
		completer, err := repository.NewGeminiChatCompleter(ctx, cfg.GetGCPProjectID(), cfg.GetGCPLocation(), cfg.GetChatModel(), appLogger)
		if err != nil {
			appLogger.Warn("Chat completion disabled", "error", err)
		} else {
			c.ChatCompleter = completer
			c.closers = append(c.closers, completer.Close)
		}
	} else {
		appLogger.Info("GCP_PROJECT_ID not set, chat completion disabled")
	}

	// Initialize services
	c.AuthService = service.NewAuthService(supabaseClient, cfg.GetJWTSecret(), clock, appLogger)
	c.EntitlementResolver = service.NewEntitlementResolver(c.SubscriptionRepository, clock, cfg.GetSubscriptionTimeout(), appLogger, appMetrics)
	c.UsageStores = service.UsageStoreFactory{
		LocalStorage: func(scope string) domain.KeyValueStore {
			return repository.NewScopedKeyValueStore(localStore, scope)
		},
		Remote: c.UsageRepository,
		Clock:  clock,
	}
	c.Sessions = service.NewSessionRegistry(
		c.EntitlementResolver,
		c.UsageStores,
		cfg.GetUsageTimeout(),
		cfg.GetSessionIdleTTL(),
		clock,
		appLogger,
		appMetrics,
	)
	c.SubscriptionService = service.NewSubscriptionService(c.SubscriptionRepository, c.AdminSubscriptionRepository, clock, appLogger, appMetrics)
	c.ChatService = service.NewChatService(c.ChatCompleter, appLogger)

	return c, nil
}

// AdminEntitlementResolver resolves any user's plan with the service role
// client, for operator tooling that holds no user token.
func (c *Container) AdminEntitlementResolver() *service.EntitlementResolver {
	return service.NewEntitlementResolver(c.AdminSubscriptionRepository, c.Clock, c.Config.GetSubscriptionTimeout(), c.Logger, c.Metrics)
}

// Close releases resources opened by NewContainer
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetSupabaseClient returns the Supabase client instance
func (c *Container) GetSupabaseClient() domain.SupabaseClient {
	return c.SupabaseClient
}
