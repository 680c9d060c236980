package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

const fallbackSystemPrompt = `You are %s, a shopping assistant for the online store "%s". Your tone is %s.

Help the shopper with questions about the store and its products. Keep replies short (under 80 words), conversational, and honest. If you don't know something store-specific, say so and offer to connect them with the team. Never invent prices, stock levels, or order details.`

// FallbackHandler is the safety net: it serves the general intent, unknown
// classifications, and every message whose confidence fell below the
// clarification threshold. It answers with the LLM using the session history
// so references like "the second one" still resolve.
type FallbackHandler struct {
	formatter    *Formatter
	historyLimit int
	logger       *logging.Logger
}

func NewFallbackHandler(formatter *Formatter, historyLimit int, logger *logging.Logger) *FallbackHandler {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackHandler{formatter: formatter, historyLimit: historyLimit, logger: logger}
}

func (h *FallbackHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	if req.Client == nil {
		return h.degraded(req), nil
	}

	messages := h.buildMessages(req)
	resp, err := req.Client.Chat(ctx, messages)
	if err != nil {
		h.logger.Warn("fallback llm call failed",
			"merchant_id", req.merchantID(),
			"error", err)
		return h.degraded(req), nil
	}

	message := strings.TrimSpace(resp.Content)
	if message == "" {
		return h.degraded(req), nil
	}

	return &Response{
		Message:    message,
		Intent:     req.Result.Intent,
		Confidence: req.Result.Confidence,
		Fallback:   true,
	}, nil
}

func (h *FallbackHandler) buildMessages(req *HandlerRequest) []llm.ChatMessage {
	assistantName := "a helpful assistant"
	storeName := "this store"
	personality := "friendly"
	if req.Merchant != nil {
		if req.Merchant.Name != "" {
			storeName = req.Merchant.Name
			assistantName = req.Merchant.Name + "'s assistant"
		}
		if req.Merchant.Personality != "" {
			personality = req.Merchant.Personality
		}
	}

	messages := []llm.ChatMessage{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(fallbackSystemPrompt, assistantName, storeName, personality),
	}}

	if req.Context != nil {
		history := req.Context.History
		if len(history) > h.historyLimit {
			history = history[len(history)-h.historyLimit:]
		}
		for _, turn := range history {
			role := llm.RoleUser
			if turn.Role == "assistant" {
				role = llm.RoleAssistant
			}
			messages = append(messages, llm.ChatMessage{Role: role, Content: turn.Content})
		}
	}

	return append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: req.Message})
}

func (h *FallbackHandler) degraded(req *HandlerRequest) *Response {
	return &Response{
		Message:  h.formatter.Format(req.merchantID(), req.personality(), ResponseClarification, nil),
		Intent:   req.Result.Intent,
		Fallback: true,
	}
}
