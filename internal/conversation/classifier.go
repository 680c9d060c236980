package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// patternShortCircuit is the confidence at which a pattern match skips the
// LLM entirely. Below it the LLM gets a say; the common cases never pay LLM
// latency or cost.
const patternShortCircuit = 0.90

const classifierPrompt = `You classify a shopper's message for an e-commerce assistant. Respond with JSON only.

Intents:
- product_search: looking for products, browsing, price questions
- greeting: hello/hi with no other content
- clarification: answering a question the assistant just asked
- cart_view: wants to see the cart
- cart_add: wants to add something to the cart
- cart_remove: wants to remove something from the cart
- cart_clear: wants to empty the cart
- checkout: ready to pay or complete the purchase
- order_tracking: asking about an existing order or delivery
- human_handoff: wants a human, agent, or customer service
- forget_preferences: wants their data or preferences deleted
- general: anything else about the store
- unknown: cannot tell

%s
Message: %s

Respond with:
{"intent": "<intent>", "confidence": <0.0-1.0>, "entities": {"category": "", "budget": 0, "size": "", "color": "", "brand": "", "keywords": "", "order_number": "", "product_ref": ""}, "reasoning": "<one sentence>"}`

// Classifier resolves intent with the pattern matcher first and an LLM
// second.
type Classifier struct {
	matcher *PatternMatcher
	logger  *logging.Logger
}

// NewClassifier wires a classifier around the supplied matcher.
func NewClassifier(matcher *PatternMatcher, logger *logging.Logger) *Classifier {
	if matcher == nil {
		matcher = NewPatternMatcher()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{matcher: matcher, logger: logger}
}

// Classify returns a classification for the message. It never returns an
// error: LLM failures degrade to intent=unknown with confidence 0 and
// provider "error", so the caller's threshold policy routes them safely.
func (c *Classifier) Classify(ctx context.Context, client llm.Client, message string, convCtx *Context) ClassificationResult {
	started := time.Now()

	if result := c.matcher.Classify(message); result != nil && result.Confidence >= patternShortCircuit {
		result.ProcessingTime = time.Since(started)
		return *result
	}

	result := c.classifyWithLLM(ctx, client, message, convCtx)
	result.ProcessingTime = time.Since(started)
	return result
}

func (c *Classifier) classifyWithLLM(ctx context.Context, client llm.Client, message string, convCtx *Context) ClassificationResult {
	failed := ClassificationResult{
		Intent:     IntentUnknown,
		Confidence: 0,
		RawMessage: message,
		Provider:   "error",
	}
	if client == nil {
		return failed
	}

	prompt := fmt.Sprintf(classifierPrompt, reducedContext(convCtx), message)
	resp, err := client.Chat(ctx, []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		c.logger.Warn("llm classification failed", "error", err)
		return failed
	}

	parsed, ok := parseClassification(resp.Content)
	if !ok {
		c.logger.Warn("llm classification unparseable", "content_length", len(resp.Content))
		return failed
	}

	parsed.RawMessage = message
	parsed.Provider = client.Provider()
	parsed.Model = resp.Model
	return parsed
}

// reducedContext renders channel plus the last three turns, enough for the
// LLM to resolve references without paying for the whole transcript.
func reducedContext(convCtx *Context) string {
	if convCtx == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", convCtx.Channel)

	history := convCtx.History
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	for _, turn := range history {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	return sb.String()
}

var validIntents = map[Intent]struct{}{
	IntentProductSearch: {}, IntentGreeting: {}, IntentClarification: {},
	IntentCartView: {}, IntentCartAdd: {}, IntentCartRemove: {}, IntentCartClear: {},
	IntentCheckout: {}, IntentOrderTracking: {}, IntentHumanHandoff: {},
	IntentForgetPreferences: {}, IntentGeneral: {}, IntentUnknown: {},
}

// parseClassification extracts the JSON object from the LLM output; models
// sometimes wrap it in prose or code fences.
func parseClassification(content string) (ClassificationResult, bool) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ClassificationResult{}, false
	}

	var payload struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Entities   struct {
			Category    string  `json:"category"`
			Budget      float64 `json:"budget"`
			Size        string  `json:"size"`
			Color       string  `json:"color"`
			Brand       string  `json:"brand"`
			Keywords    string  `json:"keywords"`
			OrderNumber string  `json:"order_number"`
			ProductRef  string  `json:"product_ref"`
		} `json:"entities"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return ClassificationResult{}, false
	}

	intent := Intent(strings.TrimSpace(payload.Intent))
	if _, ok := validIntents[intent]; !ok {
		intent = IntentUnknown
	}
	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ClassificationResult{
		Intent:     intent,
		Confidence: confidence,
		Reasoning:  payload.Reasoning,
		Entities: Entities{
			Category:    payload.Entities.Category,
			Budget:      payload.Entities.Budget,
			Size:        payload.Entities.Size,
			Color:       payload.Entities.Color,
			Brand:       payload.Entities.Brand,
			Keywords:    payload.Entities.Keywords,
			OrderNumber: payload.Entities.OrderNumber,
			ProductRef:  payload.Entities.ProductRef,
		},
	}, true
}
