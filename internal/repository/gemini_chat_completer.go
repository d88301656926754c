package repository

import (
	"context"
	"fmt"
	"strings"

	"mikasa-gate/internal/domain"

	"cloud.google.com/go/vertexai/genai"
)

const systemPrompt = "You are Mikasa, a friendly assistant in a mobile chat app. Keep answers concise and helpful."

// GeminiChatCompleter implements domain.ChatCompleter with Vertex AI Gemini.
type GeminiChatCompleter struct {
	client *genai.Client
	model  string
	logger domain.Logger
}

func NewGeminiChatCompleter(ctx context.Context, projectID, location, model string, logger domain.Logger) (*GeminiChatCompleter, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &GeminiChatCompleter{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Complete sends the last turn of history as the prompt and everything before it as context.
func (g *GeminiChatCompleter) Complete(ctx context.Context, history []domain.ChatTurn) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty conversation")
	}
	last := history[len(history)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return "", fmt.Errorf("conversation must end with a user message")
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.7)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	chat := model.StartChat()
	for _, turn := range history[:len(history)-1] {
		role := "user"
		if turn.Role == "model" || turn.Role == "assistant" {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if resp.UsageMetadata != nil {
		g.logger.Debug("Chat completion finished", "model", g.model, "tokens", resp.UsageMetadata.TotalTokenCount)
	}
	return sb.String(), nil
}

func (g *GeminiChatCompleter) Close() error {
	return g.client.Close()
}
