package service

import (
	"context"
	"fmt"
	"strings"

	"mikasa-gate/internal/domain"
)

// maxHistoryTurns bounds the context forwarded to the completion backend.
const maxHistoryTurns = 40

// ChatService runs one gated chat exchange: gate, complete, then record.
type ChatService struct {
	completer domain.ChatCompleter
	logger    domain.Logger
}

func NewChatService(completer domain.ChatCompleter, logger domain.Logger) *ChatService {
	return &ChatService{completer: completer, logger: logger}
}

// Send asks the gate, calls the completion backend and records usage only
// after a successful reply. A refusal is returned as *domain.DeniedError.
func (s *ChatService) Send(ctx context.Context, gate *SessionGate, req domain.ChatRequest) (*domain.ChatResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &domain.ValidationError{Field: "prompt", Message: "prompt is required"}
	}

	decision := gate.SendGate(ctx)
	if !decision.Allowed {
		return nil, decision.Err()
	}
	if s.completer == nil {
		return nil, domain.ErrChatServiceUnavailable
	}

	history := append(trimHistory(req.History), domain.ChatTurn{Role: "user", Content: prompt})
	reply, err := s.completer.Complete(ctx, history)
	if err != nil {
		s.logger.Error("Chat completion failed", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrChatCompletionFailed, err)
	}

	if !gate.AfterSuccessfulSend(ctx) {
		s.logger.Warn("Reply delivered but usage was not recorded")
	}
	_, snapshot := gate.Snapshot()
	return &domain.ChatResponse{Message: reply, Usage: snapshot}, nil
}

func trimHistory(history []domain.ChatTurn) []domain.ChatTurn {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	out := make([]domain.ChatTurn, 0, len(history)+1)
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		out = append(out, turn)
	}
	return out
}
