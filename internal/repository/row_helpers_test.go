package repository

import (
	"testing"
	"time"

	"mikasa-gate/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToSubscription(t *testing.T) {
	row := map[string]interface{}{
		"id":         "sub-1",
		"user_id":    "user-1",
		"plan_type":  "premium",
		"status":     "active",
		"start_date": "2025-01-01T00:00:00+00:00",
		"end_date":   "2025-01-31T00:00:00.123456+00:00",
		"created_at": "2025-01-01T00:00:01Z",
		"is_active":  false,
	}

	sub := mapToSubscription(row)

	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, domain.PlanPremium, sub.PlanType)
	assert.Equal(t, domain.StatusActive, sub.Status)
	require.NotNil(t, sub.EndDate)
	assert.True(t, sub.IsActive(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)), "is_active column is ignored")
	assert.False(t, sub.IsActive(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMapToSubscription_NullsAndDefaults(t *testing.T) {
	sub := mapToSubscription(map[string]interface{}{
		"user_id":  "user-1",
		"status":   "active",
		"end_date": nil,
	})

	assert.Equal(t, domain.PlanFree, sub.PlanType)
	assert.Nil(t, sub.EndDate)
	assert.Nil(t, sub.StartDate)
}

func TestDecodeRPCRow(t *testing.T) {
	row, err := decodeRPCRow(`[{"can_send":true,"messages_used":3,"messages_limit":10}]`)
	require.NoError(t, err)
	assert.Equal(t, 3, getInt(row, "messages_used"))

	row, err = decodeRPCRow(`{"messages_used":4}`)
	require.NoError(t, err)
	assert.Equal(t, 4, getInt(row, "messages_used"))

	row, err = decodeRPCRow(`[]`)
	require.NoError(t, err)
	assert.Empty(t, row)

	_, err = decodeRPCRow(``)
	assert.Error(t, err)

	_, err = decodeRPCRow(`{"code":"42883","message":"function check_usage does not exist"}`)
	assert.ErrorContains(t, err, "42883")
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		in     interface{}
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{"t", true, true},
		{"false", false, true},
		{float64(0), false, true},
		{nil, false, false},
	}
	for _, tt := range tests {
		got, ok := getBool(map[string]interface{}{"v": tt.in}, "v")
		assert.Equal(t, tt.want, got, "%v", tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
	}
}
