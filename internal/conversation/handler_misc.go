package conversation

import (
	"context"
	"fmt"

	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// GreetingHandler serves greeting without touching the storefront or LLM.
type GreetingHandler struct {
	formatter *Formatter
}

func NewGreetingHandler(formatter *Formatter) *GreetingHandler {
	return &GreetingHandler{formatter: formatter}
}

func (h *GreetingHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseGreeting, nil),
		Intent:  IntentGreeting,
	}, nil
}

// ClarificationHandler asks the shopper to restate; it serves the explicit
// clarification intent (pattern "what did you mean" style messages) rather
// than the low-confidence path, which goes to the LLM fallback.
type ClarificationHandler struct {
	formatter *Formatter
}

func NewClarificationHandler(formatter *Formatter) *ClarificationHandler {
	return &ClarificationHandler{formatter: formatter}
}

func (h *ClarificationHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseClarification, nil),
		Intent:  IntentClarification,
	}, nil
}

// HandoffMarker flips a session into human-handling mode.
type HandoffMarker interface {
	MarkHandoff(ctx context.Context, merchantID, senderKey string) error
}

// HandoffNotifier tells the merchant a shopper wants a human.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, merchantID, merchantName, channel, senderKey, lastMessage string) error
}

// HandoffHandler marks the session for a human and notifies the merchant.
// Notification failures are logged, not surfaced; the shopper already got
// their confirmation and a retry would only duplicate it.
type HandoffHandler struct {
	formatter *Formatter
	marker    HandoffMarker
	notifier  HandoffNotifier
	logger    *logging.Logger
}

func NewHandoffHandler(formatter *Formatter, marker HandoffMarker, notifier HandoffNotifier, logger *logging.Logger) *HandoffHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffHandler{formatter: formatter, marker: marker, notifier: notifier, logger: logger}
}

func (h *HandoffHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	senderKey := req.Context.SenderKey()

	if h.marker != nil {
		if err := h.marker.MarkHandoff(ctx, req.merchantID(), senderKey); err != nil {
			return nil, fmt.Errorf("conversation: mark handoff: %w", err)
		}
	}

	if h.notifier != nil {
		name := ""
		if req.Merchant != nil {
			name = req.Merchant.Name
		}
		if err := h.notifier.NotifyHandoff(ctx, req.merchantID(), name, string(req.Context.Channel), senderKey, req.Message); err != nil {
			h.logger.Warn("handoff notification failed",
				"merchant_id", req.merchantID(),
				"error", err)
		}
	}

	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseHandoff, nil),
		Intent:  IntentHumanHandoff,
	}, nil
}

// ContextClearer wipes a session's stored history and metadata.
type ContextClearer interface {
	Clear(ctx context.Context, merchantID, senderKey string) error
}

// ForgetHandler serves forget_preferences: it clears the stored conversation
// context and the shopper's cart.
type ForgetHandler struct {
	formatter *Formatter
	contexts  ContextClearer
	logger    *logging.Logger
}

func NewForgetHandler(formatter *Formatter, contexts ContextClearer, logger *logging.Logger) *ForgetHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ForgetHandler{formatter: formatter, contexts: contexts, logger: logger}
}

func (h *ForgetHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	if h.contexts != nil {
		if err := h.contexts.Clear(ctx, req.merchantID(), req.Context.SenderKey()); err != nil {
			return nil, fmt.Errorf("conversation: clear context: %w", err)
		}
	}
	if req.Store != nil {
		if err := req.Store.ClearCart(ctx, CartKeyForContext(req.Context)); err != nil {
			// Cart wipe is part of the forget contract; context is already
			// gone, so report the partial failure.
			return nil, fmt.Errorf("conversation: clear cart: %w", err)
		}
	}
	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseForgotten, nil),
		Intent:  IntentForgetPreferences,
	}, nil
}
