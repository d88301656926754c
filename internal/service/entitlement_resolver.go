package service

import (
	"context"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/metrics"
)

// EntitlementResolver maps an account and its subscription row to a plan and quota.
type EntitlementResolver struct {
	subscriptions domain.SubscriptionRepository
	clock         domain.Clock
	timeout       time.Duration
	logger        domain.Logger
	metrics       *metrics.Metrics
}

func NewEntitlementResolver(
	subscriptions domain.SubscriptionRepository,
	clock domain.Clock,
	timeout time.Duration,
	logger domain.Logger,
	m *metrics.Metrics,
) *EntitlementResolver {
	return &EntitlementResolver{
		subscriptions: subscriptions,
		clock:         clock,
		timeout:       timeout,
		logger:        logger,
		metrics:       m,
	}
}

// Resolve always yields a usable entitlement. Lookup failures, timeouts and
// missing rows resolve to the free tier.
func (r *EntitlementResolver) Resolve(ctx context.Context, account *domain.Account) domain.Entitlement {
	ent, _ := r.resolve(ctx, account)
	return ent
}

// resolve also reports whether the result is a fallback for a failed lookup.
// A missing row is a real answer, not a fallback.
func (r *EntitlementResolver) resolve(ctx context.Context, account *domain.Account) (domain.Entitlement, bool) {
	if account == nil {
		return domain.Entitlement{}, false
	}
	// Demo accounts never query billing.
	if account.IsDemo {
		return domain.FreeEntitlement(), false
	}

	sub, err := r.fetch(ctx, account)
	if err != nil {
		r.logger.Warn("Subscription lookup failed, using free tier", "error", err, "user_id", account.ID)
		r.metrics.ObserveFallback("subscription")
		return domain.FreeEntitlement(), true
	}
	if sub == nil {
		return domain.FreeEntitlement(), false
	}
	return EntitlementFor(sub, r.clock.Now()), false
}

func (r *EntitlementResolver) fetch(ctx context.Context, account *domain.Account) (*domain.Subscription, error) {
	if r.subscriptions == nil {
		return nil, domain.ErrStoreNotInitialized
	}
	start := time.Now()
	defer func() { r.metrics.ObserveLatency("subscription", time.Since(start).Seconds()) }()

	return callWithTimeout(ctx, r.timeout, func(ctx context.Context) (*domain.Subscription, error) {
		return r.subscriptions.GetLatest(ctx, account.ID, account.AccessToken)
	})
}

// EntitlementFor applies the subscription rule to a fetched row.
func EntitlementFor(sub *domain.Subscription, now time.Time) domain.Entitlement {
	active := sub.IsActive(now)
	return domain.Entitlement{
		LoggedIn:      true,
		PlanType:      sub.PlanType,
		IsActive:      active,
		MessagesLimit: domain.QuotaForPlan(sub.PlanType, active),
	}
}
