package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a new Gemini chat client.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	modelID := cfg.Model
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Chat sends the conversation to Gemini and returns the response.
func (c *GeminiClient) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, errors.New("llm: gemini requires at least one message")
	}

	model := c.client.GenerativeModel(c.modelID)

	// System prompts become a single system instruction
	var systemParts []string
	var turns []ChatMessage
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(systemParts) > 0 {
		systemText := strings.TrimSpace(strings.Join(systemParts, "\n\n"))
		if systemText != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}
	if len(turns) == 0 {
		return nil, errors.New("llm: gemini requires a user message")
	}

	cs := model.StartChat()

	// All turns except the last become history
	for _, msg := range turns[:len(turns)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.New("llm: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, errors.New("llm: gemini returned empty content")
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result := &ChatResponse{
		Content: strings.TrimSpace(responseText.String()),
		Model:   c.modelID,
	}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return result, nil
}

// TestConnection sends a minimal probe message.
func (c *GeminiClient) TestConnection(ctx context.Context) bool {
	_, err := c.Chat(ctx, []ChatMessage{{Role: RoleUser, Content: "ping"}})
	return err == nil
}

// HealthCheck reports provider reachability and configuration.
func (c *GeminiClient) HealthCheck(ctx context.Context) map[string]any {
	status := map[string]any{
		"provider": "gemini",
		"model":    c.modelID,
	}
	if c.TestConnection(ctx) {
		status["status"] = "ok"
	} else {
		status["status"] = "unreachable"
	}
	return status
}

func (c *GeminiClient) Provider() string { return "gemini" }
func (c *GeminiClient) Model() string    { return c.modelID }

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
