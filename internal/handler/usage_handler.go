package handler

import (
	"net/http"

	"mikasa-gate/internal/domain"
)

// UsageHandler reports the session gate's view of today's quota
type UsageHandler struct {
	logger domain.Logger
}

func NewUsageHandler(logger domain.Logger) *UsageHandler {
	return &UsageHandler{logger: logger}
}

type usageResponse struct {
	State       domain.GateState     `json:"state"`
	Tier        domain.Tier          `json:"tier"`
	CanSend     bool                 `json:"can_send"`
	Usage       domain.UsageSnapshot `json:"usage"`
	Entitlement domain.Entitlement   `json:"entitlement"`
}

// GetUsage loads the gate if needed and returns its snapshot
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	gate, ok := GetGateFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	gate.Ensure(r.Context())
	state, snapshot := gate.Snapshot()
	resp := usageResponse{
		State:       state,
		CanSend:     gate.CanSendMessage(),
		Usage:       snapshot,
		Entitlement: gate.Entitlement(),
	}
	if acc := gate.Account(); acc != nil {
		resp.Tier = acc.Tier
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckGate asks whether one message may be sent now. Nothing is recorded.
func (h *UsageHandler) CheckGate(w http.ResponseWriter, r *http.Request) {
	gate, ok := GetGateFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	decision := gate.SendGate(r.Context())
	if !decision.Allowed {
		writeAppError(w, decision.Err(), map[string]interface{}{"decision": decision})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decision": decision})
}
