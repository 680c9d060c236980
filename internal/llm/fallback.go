package llm

import (
	"context"
	"log/slog"
)

// FallbackClient wraps a primary client with a fallback provider.
// If the primary fails, it automatically retries with the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *slog.Logger
}

// NewFallbackClient creates a fallback-enabled client. If fallback is nil the
// client only uses the primary provider.
func NewFallbackClient(primary, fallback Client, logger *slog.Logger) *FallbackClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Chat sends the request to the primary provider, retrying once on the
// fallback when the primary fails.
func (c *FallbackClient) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	resp, err := c.primary.Chat(ctx, messages)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"provider", c.primary.Provider(),
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return nil, err
	}

	fallbackResp, fallbackErr := c.fallback.Chat(ctx, messages)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return nil, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure",
		"provider", c.fallback.Provider())
	return fallbackResp, nil
}

// TestConnection probes the primary, then the fallback.
func (c *FallbackClient) TestConnection(ctx context.Context) bool {
	if c.primary.TestConnection(ctx) {
		return true
	}
	return c.fallback != nil && c.fallback.TestConnection(ctx)
}

// HealthCheck reports the primary's health plus fallback availability.
func (c *FallbackClient) HealthCheck(ctx context.Context) map[string]any {
	status := c.primary.HealthCheck(ctx)
	status["fallback_configured"] = c.fallback != nil
	return status
}

func (c *FallbackClient) Provider() string { return c.primary.Provider() }
func (c *FallbackClient) Model() string    { return c.primary.Model() }
