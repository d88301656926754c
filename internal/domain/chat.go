package domain

import "context"

// ChatTurn is one message of a conversation passed to the completion backend.
type ChatTurn struct {
	Role    string `json:"role"` // user, model
	Content string `json:"content"`
}

// ChatCompleter is the external chat-completion backend.
type ChatCompleter interface {
	Complete(ctx context.Context, history []ChatTurn) (string, error)
}

type ChatRequest struct {
	History []ChatTurn `json:"history"`
	Prompt  string     `json:"prompt"`
}

type ChatResponse struct {
	Message string        `json:"message"`
	Usage   UsageSnapshot `json:"usage"`
}
