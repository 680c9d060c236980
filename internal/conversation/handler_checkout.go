package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// CheckoutHandler turns a non-empty cart into a checkout URL.
type CheckoutHandler struct {
	formatter *Formatter
}

func NewCheckoutHandler(formatter *Formatter) *CheckoutHandler {
	return &CheckoutHandler{formatter: formatter}
}

func (h *CheckoutHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	cartKey := CartKeyForContext(req.Context)

	cart, err := req.Store.GetCart(ctx, cartKey)
	if errors.Is(err, storefront.ErrNotConnected) {
		return storeOffline(h.formatter, req), nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCheckoutEmpty, nil),
			Intent:  IntentCheckout,
		}, nil
	}

	url, err := req.Store.CreateCheckoutURL(ctx, cartKey)
	if errors.Is(err, storefront.ErrNotConnected) {
		return storeOffline(h.formatter, req), nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: create checkout url: %w", err)
	}

	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCheckout,
			map[string]string{"url": url}),
		Intent:      IntentCheckout,
		CheckoutURL: url,
		Cart:        cart,
	}, nil
}
