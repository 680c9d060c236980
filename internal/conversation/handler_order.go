package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// OrderHandler answers order_tracking lookups. Missing order numbers prompt
// the shopper rather than guessing.
type OrderHandler struct {
	formatter *Formatter
}

func NewOrderHandler(formatter *Formatter) *OrderHandler {
	return &OrderHandler{formatter: formatter}
}

func (h *OrderHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	number := req.Result.Entities.OrderNumber
	if number == "" {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseOrderAskNumber, nil),
			Intent:  IntentOrderTracking,
		}, nil
	}

	order, err := req.Store.GetOrder(ctx, number)
	if errors.Is(err, storefront.ErrNotConnected) {
		return storeOffline(h.formatter, req), nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get order %q: %w", number, err)
	}
	if order == nil {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseOrderNotFound,
				map[string]string{"order": number}),
			Intent: IntentOrderTracking,
		}, nil
	}

	status := order.Status
	if order.FulfillmentText != "" {
		status = fmt.Sprintf("%s (%s)", order.Status, order.FulfillmentText)
	}
	msg := h.formatter.Format(req.merchantID(), req.personality(), ResponseOrderStatus,
		map[string]string{"order": order.Number, "status": status})
	if order.TrackingURL != "" {
		msg += "\nTrack it here: " + order.TrackingURL
	}

	return &Response{Message: msg, Intent: IntentOrderTracking, Order: order}, nil
}
