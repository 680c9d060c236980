package conversation

import (
	"fmt"
	"strings"
	"sync"
)

// Response types the formatter knows templates for.
const (
	ResponseGreeting       = "greeting"
	ResponseSearchResults  = "search_results"
	ResponseSearchEmpty    = "search_empty"
	ResponseCartAdded      = "cart_added"
	ResponseCartRemoved    = "cart_removed"
	ResponseCartCleared    = "cart_cleared"
	ResponseCartView       = "cart_view"
	ResponseCartEmpty      = "cart_empty"
	ResponseCheckout       = "checkout"
	ResponseCheckoutEmpty  = "checkout_empty"
	ResponseOrderStatus    = "order_status"
	ResponseOrderNotFound  = "order_not_found"
	ResponseOrderAskNumber = "order_ask_number"
	ResponseHandoff        = "handoff"
	ResponseClarification  = "clarification"
	ResponseForgotten      = "preferences_forgotten"
	ResponseStoreOffline   = "store_offline"
)

// neutralFallback is the absolute floor: the formatter returns it when even
// the neutral template set has nothing for the requested type.
const neutralFallback = "I'm here to help."

var neutralTemplates = map[string]string{
	ResponseGreeting:       "Hello! How can I help you today?",
	ResponseSearchResults:  "I found {count} products matching {query}.",
	ResponseSearchEmpty:    "I couldn't find anything matching {query}. Could you try different words?",
	ResponseCartAdded:      "Added {product} to your cart.",
	ResponseCartRemoved:    "Removed {product} from your cart.",
	ResponseCartCleared:    "Your cart has been cleared.",
	ResponseCartView:       "Your cart has {count} items totaling {total}.",
	ResponseCartEmpty:      "Your cart is empty.",
	ResponseCheckout:       "Here's your checkout link: {url}",
	ResponseCheckoutEmpty:  "Your cart is empty, so there's nothing to check out yet.",
	ResponseOrderStatus:    "Order {order} is {status}.",
	ResponseOrderNotFound:  "I couldn't find order {order}.",
	ResponseOrderAskNumber: "Which order would you like to check? Please share the order number.",
	ResponseHandoff:        "I've notified the team. Someone will be with you shortly.",
	ResponseClarification:  "Could you tell me a bit more about what you're looking for?",
	ResponseForgotten:      "Done. Your preferences and cart have been cleared.",
	ResponseStoreOffline:   "The store isn't connected right now, so I can't look that up.",
}

var personalityTemplates = map[string]map[string]string{
	"friendly": {
		ResponseGreeting:       "Hey there! 👋 What can I help you find today?",
		ResponseSearchResults:  "Great news! I found {count} products matching {query} 🎉",
		ResponseSearchEmpty:    "Hmm, I couldn't find anything for {query}. Want to try different words?",
		ResponseCartAdded:      "Nice pick! {product} is in your cart 🛒",
		ResponseCartRemoved:    "No problem, I took {product} out of your cart.",
		ResponseCartCleared:    "All done! Your cart is empty again.",
		ResponseCartView:       "You've got {count} items in your cart, coming to {total}.",
		ResponseCartEmpty:      "Your cart's empty right now. Want me to find you something?",
		ResponseCheckout:       "You're all set! Here's your checkout link: {url}",
		ResponseCheckoutEmpty:  "Your cart's empty, so nothing to check out just yet!",
		ResponseOrderStatus:    "Good news! Order {order} is {status} 📦",
		ResponseOrderNotFound:  "Hmm, I couldn't find order {order}. Mind double-checking the number?",
		ResponseOrderAskNumber: "Happy to check! What's your order number?",
		ResponseHandoff:        "Of course! I've let the team know — someone will jump in shortly 😊",
		ResponseClarification:  "Happy to help! Could you tell me a little more about what you're after?",
		ResponseForgotten:      "All cleared! Your preferences and cart are gone. Fresh start! ✨",
	},
	"professional": {
		ResponseGreeting:       "Good day. How may I assist you?",
		ResponseSearchResults:  "I have located {count} products matching {query}.",
		ResponseSearchEmpty:    "No products match {query}. You may wish to refine your search terms.",
		ResponseCartAdded:      "{product} has been added to your cart.",
		ResponseCartRemoved:    "{product} has been removed from your cart.",
		ResponseCartCleared:    "Your cart has been emptied.",
		ResponseCartView:       "Your cart contains {count} items with a total of {total}.",
		ResponseCartEmpty:      "Your cart is currently empty.",
		ResponseCheckout:       "Your checkout link is ready: {url}",
		ResponseCheckoutEmpty:  "Your cart is empty; there is nothing to check out at this time.",
		ResponseOrderStatus:    "Order {order} is currently {status}.",
		ResponseOrderNotFound:  "We were unable to locate order {order}. Please verify the order number.",
		ResponseOrderAskNumber: "Certainly. Please provide your order number.",
		ResponseHandoff:        "Understood. A member of our team has been notified and will assist you shortly.",
		ResponseClarification:  "Could you please provide additional detail regarding your request?",
		ResponseForgotten:      "Your preferences and cart data have been removed as requested.",
	},
	"enthusiastic": {
		ResponseGreeting:       "Hi!! So glad you're here! What are we shopping for today?! 🎊",
		ResponseSearchResults:  "Amazing!! I found {count} products for {query}!! 🤩",
		ResponseSearchEmpty:    "Oh no, nothing for {query}! Let's try something else — I KNOW we'll find it!",
		ResponseCartAdded:      "YES! {product} is in your cart!! Great choice! 🛒✨",
		ResponseCartRemoved:    "Done! {product} is out of your cart!",
		ResponseCartCleared:    "Cart cleared! Ready for a whole new haul! 🙌",
		ResponseCartView:       "Look at this haul!! {count} items, {total} total!!",
		ResponseCartEmpty:      "Your cart is empty — let's fix that!! What are you in the mood for?!",
		ResponseCheckout:       "SO exciting!! Here's your checkout link: {url} 🎉",
		ResponseCheckoutEmpty:  "Your cart's empty — let's find something amazing first!!",
		ResponseOrderStatus:    "Great news!! Order {order} is {status}!! 🚚💨",
		ResponseOrderNotFound:  "Hmm, I can't find order {order}! Can you double-check that number for me?",
		ResponseOrderAskNumber: "On it!! What's your order number?!",
		ResponseHandoff:        "Absolutely!! I've pinged the team — a real human is on the way!! 🏃",
		ResponseClarification:  "Ooh, tell me more!! What exactly are you looking for?!",
		ResponseForgotten:      "Poof!! All your preferences and cart are cleared! Blank slate! ✨",
	},
}

// Formatter renders response templates through a three-tier fallback:
// merchant-registered custom templates, then the merchant's personality set,
// then the neutral set. It never fails; a missing variable leaves the raw
// template visible rather than dropping the message.
type Formatter struct {
	mu     sync.RWMutex
	custom map[string]map[string]string // merchantID -> responseType -> template
}

func NewFormatter() *Formatter {
	return &Formatter{custom: make(map[string]map[string]string)}
}

// RegisterResponseType installs a merchant-specific template that takes
// priority over the personality sets.
func (f *Formatter) RegisterResponseType(merchantID, responseType, template string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.custom[merchantID] == nil {
		f.custom[merchantID] = make(map[string]string)
	}
	f.custom[merchantID][responseType] = template
}

// Format renders responseType for the merchant's personality, substituting
// {name} placeholders from vars.
func (f *Formatter) Format(merchantID, personality, responseType string, vars map[string]string) string {
	template := f.lookup(merchantID, personality, responseType)
	return substitute(template, vars)
}

func (f *Formatter) lookup(merchantID, personality, responseType string) string {
	f.mu.RLock()
	if templates, ok := f.custom[merchantID]; ok {
		if t, ok := templates[responseType]; ok {
			f.mu.RUnlock()
			return t
		}
	}
	f.mu.RUnlock()

	if set, ok := personalityTemplates[strings.ToLower(personality)]; ok {
		if t, ok := set[responseType]; ok {
			return t
		}
	}
	if t, ok := neutralTemplates[responseType]; ok {
		return t
	}
	return neutralFallback
}

// substitute replaces {key} placeholders. Placeholders with no matching var
// are left as-is so a template bug degrades visibly instead of silently.
func substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, fmt.Sprintf("{%s}", k), v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
