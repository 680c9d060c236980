package conversation

import "time"

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentProductSearch     Intent = "product_search"
	IntentGreeting          Intent = "greeting"
	IntentClarification     Intent = "clarification"
	IntentCartView          Intent = "cart_view"
	IntentCartAdd           Intent = "cart_add"
	IntentCartRemove        Intent = "cart_remove"
	IntentCartClear         Intent = "cart_clear"
	IntentCheckout          Intent = "checkout"
	IntentOrderTracking     Intent = "order_tracking"
	IntentHumanHandoff      Intent = "human_handoff"
	IntentForgetPreferences Intent = "forget_preferences"
	IntentGeneral           Intent = "general"
	IntentUnknown           Intent = "unknown"
)

// ClarificationThreshold is the confidence cutoff below which classified
// intent is discarded in favor of the safe LLM fallback. Applied uniformly
// across all intents.
const ClarificationThreshold = 0.80

// Entities are structured attributes extracted from a message.
type Entities struct {
	Category    string            `json:"category,omitempty"`
	Budget      float64           `json:"budget,omitempty"`
	Size        string            `json:"size,omitempty"`
	Color       string            `json:"color,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Keywords    string            `json:"keywords,omitempty"`
	OrderNumber string            `json:"order_number,omitempty"`
	Quantity    int               `json:"quantity,omitempty"`
	ProductRef  string            `json:"product_ref,omitempty"`
	SortBy      string            `json:"sort_by,omitempty"` // "price_asc" or "price_desc"
	Constraints map[string]string `json:"constraints,omitempty"`
}

// ClassificationResult is produced fresh per message and never persisted
// directly; only intent and confidence are stamped onto the bot message's
// metadata.
type ClassificationResult struct {
	Intent     Intent
	Confidence float64
	Entities   Entities
	RawMessage string
	Reasoning  string

	// Which engine produced this: "pattern", a provider name, or "error".
	Provider string
	Model    string

	ProcessingTime time.Duration
}

// NeedsClarification is derived from the threshold rather than stored, so it
// cannot drift out of sync with Confidence.
func (r *ClassificationResult) NeedsClarification() bool {
	return r.Confidence < ClarificationThreshold
}
