package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mikasa-gate/internal/domain"
)

// Postgres functions backing the per-(user, day) counter. Both key on the
// server's current date so the client never computes the day or the count.
//
//	check_usage(p_user_id uuid) returns table(can_send bool, messages_used int, messages_limit int)
//	increment_usage(p_user_id uuid) returns boolean
const (
	checkUsageRPC     = "check_usage"
	incrementUsageRPC = "increment_usage"
)

// SupabaseUsageRepository implements domain.RemoteUsageRepository via RPC.
type SupabaseUsageRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabaseUsageRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseUsageRepository {
	return &SupabaseUsageRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// rpcError is the PostgREST error body.
type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (r *SupabaseUsageRepository) CheckUsage(ctx context.Context, userID string, token string) (*domain.UsageSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	// Rpc returns only the body; transport failures surface as an empty string.
	resp := client.Rpc(checkUsageRPC, "", map[string]interface{}{"p_user_id": userID})
	row, err := decodeRPCRow(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", checkUsageRPC, err)
	}

	used := getInt(row, "messages_used")
	limit := domain.FreeDailyLimit
	if _, ok := row["messages_limit"]; ok {
		limit = getInt(row, "messages_limit")
	}
	snapshot := domain.NewUsageSnapshot(used, limit)
	if canSend, ok := getBool(row, "can_send"); ok {
		snapshot.CanSend = canSend
	}
	return &snapshot, nil
}

func (r *SupabaseUsageRepository) IncrementUsage(ctx context.Context, userID string, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return false, fmt.Errorf("failed to get client: %w", err)
	}

	resp := strings.TrimSpace(client.Rpc(incrementUsageRPC, "", map[string]interface{}{"p_user_id": userID}))
	switch resp {
	case "":
		return false, fmt.Errorf("%s: rpc returned empty response", incrementUsageRPC)
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	var rpcErr rpcError
	if err := json.Unmarshal([]byte(resp), &rpcErr); err == nil && rpcErr.Message != "" {
		return false, fmt.Errorf("%s: %s (%s)", incrementUsageRPC, rpcErr.Message, rpcErr.Code)
	}
	return false, fmt.Errorf("%s: unexpected response %q", incrementUsageRPC, resp)
}

// decodeRPCRow accepts either a JSON object or a single-row array, which is
// what PostgREST returns for table-returning functions.
func decodeRPCRow(resp string) (map[string]interface{}, error) {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return nil, fmt.Errorf("rpc returned empty response")
	}

	if strings.HasPrefix(resp, "[") {
		var rows []map[string]interface{}
		if err := json.Unmarshal([]byte(resp), &rows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rpc response: %w", err)
		}
		if len(rows) == 0 {
			return map[string]interface{}{}, nil
		}
		return rows[0], nil
	}

	var row map[string]interface{}
	if err := json.Unmarshal([]byte(resp), &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rpc response: %w", err)
	}
	if msg := getString(row, "message"); msg != "" && getString(row, "code") != "" {
		return nil, fmt.Errorf("rpc error: %s (%s)", msg, getString(row, "code"))
	}
	return row, nil
}
