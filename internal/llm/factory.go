package llm

import (
	"context"
	"fmt"
	"strings"
)

// Factory builds provider clients from merchant configuration. The Bedrock
// runtime client is process-wide AWS plumbing, so it is injected once at
// startup rather than rebuilt per merchant.
type Factory struct {
	bedrockAPI BedrockConverseAPI
}

// NewFactory creates a provider factory. bedrockAPI may be nil when Bedrock
// is not configured for this deployment.
func NewFactory(bedrockAPI BedrockConverseAPI) *Factory {
	return &Factory{bedrockAPI: bedrockAPI}
}

// Create builds a client for the named provider. Unknown providers are an
// error so misconfigured merchants surface loudly instead of silently
// defaulting.
func (f *Factory) Create(ctx context.Context, provider string, cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "bedrock":
		if f.bedrockAPI == nil {
			return nil, fmt.Errorf("llm: bedrock is not configured for this deployment")
		}
		return NewBedrockClient(f.bedrockAPI, cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
