package domain

import "time"

// PlanType is the billing plan stored on a subscription row.
type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanPremium PlanType = "premium"
	PlanPro     PlanType = "pro"
)

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

const (
	// FreeDailyLimit is the per-day message quota for demo and free accounts.
	FreeDailyLimit = 10

	// Unlimited marks a quota or remaining count with no upper bound.
	Unlimited = -1

	// DefaultSubscriptionPeriod is the length of a paid period created at checkout.
	DefaultSubscriptionPeriod = 30 * 24 * time.Hour
)

// Subscription is one row of the remote subscriptions table.
type Subscription struct {
	ID        string             `json:"id,omitempty"`
	UserID    string             `json:"user_id"`
	PlanType  PlanType           `json:"plan_type"`
	Status    SubscriptionStatus `json:"status"`
	StartDate *time.Time         `json:"start_date"`
	EndDate   *time.Time         `json:"end_date"`
	CreatedAt time.Time          `json:"created_at,omitempty"`
}

// IsActive is true only for an active row whose end date, if any, is still ahead.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != StatusActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// ParsePlanType validates a plan name coming from a client or operator.
func ParsePlanType(plan string) (PlanType, bool) {
	switch p := PlanType(plan); p {
	case PlanFree, PlanPremium, PlanPro:
		return p, true
	default:
		return "", false
	}
}

// IsPaid reports whether the plan lifts the daily quota.
func (p PlanType) IsPaid() bool {
	return p == PlanPremium || p == PlanPro
}

// QuotaForPlan returns the daily message quota. Paid plans are unlimited only
// while their subscription is active.
func QuotaForPlan(plan PlanType, active bool) int {
	if plan.IsPaid() && active {
		return Unlimited
	}
	return FreeDailyLimit
}

// Entitlement is the resolved plan and quota for a session.
type Entitlement struct {
	LoggedIn      bool     `json:"logged_in"`
	PlanType      PlanType `json:"plan_type"`
	IsActive      bool     `json:"is_active"`
	MessagesLimit int      `json:"messages_limit"`
}

// FreeEntitlement is the fail-open default used for demo accounts and
// whenever the subscription lookup cannot produce a row.
func FreeEntitlement() Entitlement {
	return Entitlement{
		LoggedIn:      true,
		PlanType:      PlanFree,
		IsActive:      true,
		MessagesLimit: FreeDailyLimit,
	}
}

// Tier maps the entitlement back to an account tier label.
func (e Entitlement) Tier(isDemo bool) Tier {
	switch {
	case isDemo:
		return TierDemo
	case e.PlanType == PlanPremium && e.IsActive:
		return TierPremium
	case e.PlanType == PlanPro && e.IsActive:
		return TierPro
	default:
		return TierFree
	}
}
