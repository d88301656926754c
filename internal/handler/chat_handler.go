package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mikasa-gate/internal/domain"
	"mikasa-gate/internal/service"
)

// ChatHandler runs gated chat exchanges
type ChatHandler struct {
	chatService *service.ChatService
	logger      domain.Logger
}

func NewChatHandler(chatService *service.ChatService, logger domain.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

// Send forwards the prompt when the gate allows it. A refusal is a 429 (or
// 401) carrying the upsell message and the decision.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	gate, ok := GetGateFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.chatService.Send(r.Context(), gate, req)
	if err != nil {
		var denied *domain.DeniedError
		if errors.As(err, &denied) {
			writeAppError(w, err, map[string]interface{}{"decision": denied.Decision})
			return
		}
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
