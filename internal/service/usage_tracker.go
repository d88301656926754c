package service

import (
	"context"
	"time"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/metrics"
)

// UsageTracker reads and records today's message count through one UsageStore.
// It never returns errors; failures degrade to defaults and are logged.
type UsageTracker struct {
	store     domain.UsageStore
	storeName string
	timeout   time.Duration
	logger    domain.Logger
	metrics   *metrics.Metrics
}

func NewUsageTracker(store domain.UsageStore, storeName string, timeout time.Duration, logger domain.Logger, m *metrics.Metrics) *UsageTracker {
	return &UsageTracker{
		store:     store,
		storeName: storeName,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// TodayCount returns the number of messages sent today, or 0 when the store fails.
func (t *UsageTracker) TodayCount(ctx context.Context, account *domain.Account) int {
	count, _ := t.todayCount(ctx, account)
	return count
}

// TodayUsage derives the snapshot for limit. A failed read yields the
// conservative default (0 used of the free quota) instead of an error.
func (t *UsageTracker) TodayUsage(ctx context.Context, account *domain.Account, limit int) domain.UsageSnapshot {
	count, ok := t.todayCount(ctx, account)
	if !ok {
		return domain.FallbackUsageSnapshot()
	}
	return domain.NewUsageSnapshot(count, limit)
}

// RecordMessageSent increments today's count once. It is not idempotent.
// On failure it returns false and nothing is counted locally.
func (t *UsageTracker) RecordMessageSent(ctx context.Context, account *domain.Account) bool {
	if account == nil {
		return false
	}
	start := time.Now()
	_, err := callWithTimeout(ctx, t.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.store.Increment(ctx, account)
	})
	t.metrics.ObserveLatency("usage_increment", time.Since(start).Seconds())
	if err != nil {
		t.logger.Warn("Failed to record message", "error", err, "account_id", account.ID, "store", t.storeName)
		t.metrics.ObserveFallback("usage_increment")
		t.metrics.ObserveIncrement(t.storeName, false)
		return false
	}
	t.metrics.ObserveIncrement(t.storeName, true)
	return true
}

func (t *UsageTracker) todayCount(ctx context.Context, account *domain.Account) (int, bool) {
	if account == nil {
		return 0, false
	}
	start := time.Now()
	count, err := callWithTimeout(ctx, t.timeout, func(ctx context.Context) (int, error) {
		return t.store.TodayCount(ctx, account)
	})
	t.metrics.ObserveLatency("usage_read", time.Since(start).Seconds())
	if err != nil {
		t.logger.Warn("Failed to read usage, assuming none", "error", err, "account_id", account.ID, "store", t.storeName)
		t.metrics.ObserveFallback("usage_read")
		return 0, false
	}
	return count, true
}
