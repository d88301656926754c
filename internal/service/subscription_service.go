package service

import (
	"context"
	"fmt"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/metrics"
)

// SubscriptionService runs checkout, cancellation and operator grants.
// Payment is mocked: a checkout always succeeds and opens a fixed period.
type SubscriptionService struct {
	subscriptions domain.SubscriptionRepository
	// admin bypasses row level security; nil disables Grant.
	admin   domain.SubscriptionRepository
	clock   domain.Clock
	logger  domain.Logger
	metrics *metrics.Metrics
}

func NewSubscriptionService(
	subscriptions domain.SubscriptionRepository,
	admin domain.SubscriptionRepository,
	clock domain.Clock,
	logger domain.Logger,
	m *metrics.Metrics,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		admin:         admin,
		clock:         clock,
		logger:        logger,
		metrics:       m,
	}
}

// Current returns the user's latest subscription row.
func (s *SubscriptionService) Current(ctx context.Context, userID, token string) (*domain.Subscription, error) {
	sub, err := s.subscriptions.GetLatest(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// Subscribe opens a paid period for the account. Earlier active rows are
// deactivated first, so at most one row is active afterwards.
func (s *SubscriptionService) Subscribe(ctx context.Context, account *domain.Account, plan domain.PlanType) (*domain.Subscription, error) {
	if account == nil {
		return nil, domain.ErrUserNotFound
	}
	if account.IsDemo {
		return nil, domain.ErrDemoCannotSubscribe
	}
	if !plan.IsPaid() {
		return nil, fmt.Errorf("%w: %q is not purchasable", domain.ErrInvalidPlan, plan)
	}

	sub := s.newPeriod(account.ID, plan, domain.DefaultSubscriptionPeriod)
	if err := s.subscriptions.Create(ctx, sub, account.AccessToken); err != nil {
		return nil, err
	}
	s.metrics.ObserveSubscriptionChange("subscribe", string(plan))
	return sub, nil
}

// Cancel marks the user's active rows cancelled; the account drops to free.
func (s *SubscriptionService) Cancel(ctx context.Context, userID, token string) error {
	if err := s.subscriptions.CancelActive(ctx, userID, token); err != nil {
		return err
	}
	s.metrics.ObserveSubscriptionChange("cancel", "")
	return nil
}

// Grant sets a plan for any user, bypassing checkout. days <= 0 grants an
// open-ended period. Granting free cancels the active rows instead.
func (s *SubscriptionService) Grant(ctx context.Context, userID string, plan domain.PlanType, days int) (*domain.Subscription, error) {
	if s.admin == nil {
		return nil, domain.ErrStoreNotInitialized
	}
	if userID == "" {
		return nil, domain.ErrUserNotFound
	}

	if plan == domain.PlanFree {
		if err := s.admin.CancelActive(ctx, userID, ""); err != nil {
			return nil, err
		}
		s.metrics.ObserveSubscriptionChange("grant", string(plan))
		return nil, nil
	}
	if !plan.IsPaid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, plan)
	}

	var period time.Duration
	if days > 0 {
		period = time.Duration(days) * 24 * time.Hour
	}
	sub := s.newPeriod(userID, plan, period)
	if err := s.admin.Create(ctx, sub, ""); err != nil {
		return nil, err
	}
	s.logger.Info("Plan granted", "user_id", userID, "plan_type", plan, "days", days)
	s.metrics.ObserveSubscriptionChange("grant", string(plan))
	return sub, nil
}

// newPeriod builds an active row starting now; a zero period has no end date.
func (s *SubscriptionService) newPeriod(userID string, plan domain.PlanType, period time.Duration) *domain.Subscription {
	start := s.clock.Now().UTC()
	sub := &domain.Subscription{
		UserID:    userID,
		PlanType:  plan,
		Status:    domain.StatusActive,
		StartDate: &start,
	}
	if period > 0 {
		end := start.Add(period)
		sub.EndDate = &end
	}
	return sub
}
