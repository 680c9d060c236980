package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// HandlerRequest carries everything an intent handler needs for one message.
type HandlerRequest struct {
	Merchant *merchants.Merchant
	Context  *Context
	Message  string
	Result   ClassificationResult

	// Storefront for the merchant; may return ErrNotConnected.
	Store storefront.Provider

	// Cost-tracked LLM client, only some handlers use it.
	Client llm.Client
}

func (r *HandlerRequest) personality() string {
	if r.Merchant == nil {
		return ""
	}
	return r.Merchant.Personality
}

func (r *HandlerRequest) merchantID() string {
	if r.Merchant == nil {
		return ""
	}
	return r.Merchant.ID
}

// IntentHandler produces the response for one classified intent. Handlers
// return errors only for infrastructure failures; business outcomes like "no
// products found" or "store not connected" are formatted responses.
type IntentHandler interface {
	Handle(ctx context.Context, req *HandlerRequest) (*Response, error)
}

// HandlerFunc adapts a function to IntentHandler.
type HandlerFunc func(ctx context.Context, req *HandlerRequest) (*Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	return f(ctx, req)
}

func formatMoney(amount float64, currency string) string {
	symbol := "$"
	switch strings.ToUpper(currency) {
	case "EUR":
		symbol = "€"
	case "GBP":
		symbol = "£"
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// storeOffline is the shared ErrNotConnected projection.
func storeOffline(f *Formatter, req *HandlerRequest) *Response {
	return &Response{
		Message: f.Format(req.merchantID(), req.personality(), ResponseStoreOffline, nil),
		Intent:  req.Result.Intent,
	}
}
