package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn handed to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the provider-agnostic result of a chat call.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Client is the contract every provider implementation satisfies. Decorators
// (cost tracking, fallback) wrap this interface without changing it.
type Client interface {
	Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error)
	TestConnection(ctx context.Context) bool
	HealthCheck(ctx context.Context) map[string]any
	Provider() string
	Model() string
}

// Config carries merchant-scoped provider settings. APIKey arrives already
// decrypted from the merchant store.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}
