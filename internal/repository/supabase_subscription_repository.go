package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mikasa-gate/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

const subscriptionsTable = "subscriptions"

// SupabaseSubscriptionRepository implements domain.SubscriptionRepository
// against the `subscriptions` table.
type SupabaseSubscriptionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	now            func() time.Time
}

// NewSupabaseSubscriptionRepository creates a new Supabase subscription repository
func NewSupabaseSubscriptionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseSubscriptionRepository {
	return &SupabaseSubscriptionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
		now:            time.Now,
	}
}

// GetLatest retrieves the most recently created subscription row for a user
func (r *SupabaseSubscriptionRepository) GetLatest(ctx context.Context, userID string, token string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Use client with token for RLS policies
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(subscriptionsTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToSubscription(rows[0]), nil
}

// Create inserts a new subscription after deactivating the user's active rows.
// The two statements are not transactional; a failed insert leaves the user
// with no active row, which resolves to the free tier.
func (r *SupabaseSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	now := r.now().UTC()
	_, _, err = client.From(subscriptionsTable).
		Update(map[string]interface{}{
			"status":     string(domain.StatusInactive),
			"updated_at": now,
		}, "minimal", "").
		Eq("user_id", sub.UserID).
		Eq("status", string(domain.StatusActive)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to deactivate previous subscriptions: %w", err)
	}

	data := map[string]interface{}{
		"user_id":    sub.UserID,
		"plan_type":  string(sub.PlanType),
		"status":     string(sub.Status),
		"start_date": sub.StartDate,
		"end_date":   sub.EndDate,
		"created_at": now,
		"updated_at": now,
	}
	resp, _, err := client.From(subscriptionsTable).Insert(data, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	var result []struct {
		ID string `json:"id"`
	}
	if len(resp) > 0 {
		if err := json.Unmarshal(resp, &result); err == nil && len(result) > 0 {
			sub.ID = result[0].ID
		}
	}
	sub.CreatedAt = now

	r.logger.Info("Subscription created",
		"user_id", sub.UserID,
		"plan_type", sub.PlanType,
		"subscription_id", sub.ID)
	return nil
}

// CancelActive marks every active row of the user as cancelled
func (r *SupabaseSubscriptionRepository) CancelActive(ctx context.Context, userID string, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(subscriptionsTable).
		Update(map[string]interface{}{
			"status":     string(domain.StatusCancelled),
			"updated_at": r.now().UTC(),
		}, "minimal", "").
		Eq("user_id", userID).
		Eq("status", string(domain.StatusActive)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	r.logger.Info("Subscription cancelled", "user_id", userID)
	return nil
}

// mapToSubscription converts a row to a Subscription. `is_active` is derived, never read.
func mapToSubscription(data map[string]interface{}) *domain.Subscription {
	sub := &domain.Subscription{
		ID:        getString(data, "id"),
		UserID:    getString(data, "user_id"),
		PlanType:  domain.PlanType(getString(data, "plan_type")),
		Status:    domain.SubscriptionStatus(getString(data, "status")),
		StartDate: getTimePointer(data, "start_date"),
		EndDate:   getTimePointer(data, "end_date"),
	}
	if created := getTimePointer(data, "created_at"); created != nil {
		sub.CreatedAt = *created
	}
	if sub.PlanType == "" {
		sub.PlanType = domain.PlanFree
	}
	return sub
}
