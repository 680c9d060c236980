package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// Context metadata keys the cart handler reads and writes so "add this"
// can resolve against the product most recently shown to the shopper.
const (
	metaLastProductID    = "last_product_id"
	metaLastProductTitle = "last_product_title"
)

// CartHandler serves cart_view, cart_add, cart_remove and cart_clear. The
// action is derived from the classified intent; one handler keeps the cart
// key and ErrNotConnected handling in a single place.
type CartHandler struct {
	formatter *Formatter
}

func NewCartHandler(formatter *Formatter) *CartHandler {
	return &CartHandler{formatter: formatter}
}

func (h *CartHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	cartKey := CartKeyForContext(req.Context)

	var (
		resp *Response
		err  error
	)
	switch req.Result.Intent {
	case IntentCartAdd:
		resp, err = h.add(ctx, req, cartKey)
	case IntentCartRemove:
		resp, err = h.remove(ctx, req, cartKey)
	case IntentCartClear:
		resp, err = h.clear(ctx, req, cartKey)
	default:
		resp, err = h.view(ctx, req, cartKey)
	}

	if errors.Is(err, storefront.ErrNotConnected) {
		return storeOffline(h.formatter, req), nil
	}
	return resp, err
}

func (h *CartHandler) view(ctx context.Context, req *HandlerRequest, cartKey string) (*Response, error) {
	cart, err := req.Store.GetCart(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("conversation: get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCartEmpty, nil),
			Intent:  IntentCartView,
		}, nil
	}

	msg := h.formatter.Format(req.merchantID(), req.personality(), ResponseCartView,
		map[string]string{
			"count": fmt.Sprintf("%d", len(cart.Items)),
			"total": formatMoney(cart.Subtotal, cart.Currency),
		})

	var sb strings.Builder
	sb.WriteString(msg)
	for _, item := range cart.Items {
		fmt.Fprintf(&sb, "\n• %s ×%d — %s", item.Title, item.Quantity, formatMoney(item.Price*float64(item.Quantity), cart.Currency))
	}

	return &Response{Message: sb.String(), Intent: IntentCartView, Cart: cart}, nil
}

func (h *CartHandler) add(ctx context.Context, req *HandlerRequest, cartKey string) (*Response, error) {
	product, clarify, err := h.resolveProduct(ctx, req)
	if err != nil {
		return nil, err
	}
	if clarify != nil {
		return clarify, nil
	}

	quantity := req.Result.Entities.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	cart, err := req.Store.AddToCart(ctx, cartKey, storefront.CartItem{
		ProductID: product.ID,
		VariantID: product.VariantID,
		Title:     product.Title,
		Quantity:  quantity,
		Price:     product.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: add to cart: %w", err)
	}

	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCartAdded,
			map[string]string{"product": product.Title}),
		Intent: IntentCartAdd,
		Cart:   cart,
	}, nil
}

// resolveProduct maps the message's product reference to a storefront
// product. "add this" with no reference falls back to the product most
// recently shown in this session; no match at all asks for clarification.
func (h *CartHandler) resolveProduct(ctx context.Context, req *HandlerRequest) (*storefront.Product, *Response, error) {
	ref := strings.TrimSpace(req.Result.Entities.ProductRef)

	if ref == "" || isDeicticRef(ref) {
		if req.Context != nil && req.Context.Metadata[metaLastProductID] != "" {
			return &storefront.Product{
				ID:    req.Context.Metadata[metaLastProductID],
				Title: req.Context.Metadata[metaLastProductTitle],
			}, nil, nil
		}
		return nil, &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseClarification, nil),
			Intent:  IntentClarification,
		}, nil
	}

	products, err := req.Store.SearchProducts(ctx, storefront.SearchQuery{Keywords: ref, Limit: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: resolve product %q: %w", ref, err)
	}
	if len(products) == 0 {
		return nil, &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseSearchEmpty,
				map[string]string{"query": ref}),
			Intent: IntentCartAdd,
		}, nil
	}
	return &products[0], nil, nil
}

// isDeicticRef reports whether the reference only points at prior context
// ("this", "that", "it") rather than naming a product.
func isDeicticRef(ref string) bool {
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "this", "that", "it", "this one", "that one", "the first one":
		return true
	}
	return false
}

func (h *CartHandler) remove(ctx context.Context, req *HandlerRequest, cartKey string) (*Response, error) {
	cart, err := req.Store.GetCart(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("conversation: get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCartEmpty, nil),
			Intent:  IntentCartRemove,
		}, nil
	}

	ref := strings.ToLower(strings.TrimSpace(req.Result.Entities.ProductRef))
	var target *storefront.CartItem
	for i := range cart.Items {
		if ref == "" || strings.Contains(strings.ToLower(cart.Items[i].Title), ref) {
			target = &cart.Items[i]
			break
		}
	}
	if target == nil {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseClarification, nil),
			Intent:  IntentClarification,
		}, nil
	}

	updated, err := req.Store.UpdateCartItem(ctx, cartKey, target.ProductID, 0)
	if err != nil {
		return nil, fmt.Errorf("conversation: remove from cart: %w", err)
	}

	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCartRemoved,
			map[string]string{"product": target.Title}),
		Intent: IntentCartRemove,
		Cart:   updated,
	}, nil
}

func (h *CartHandler) clear(ctx context.Context, req *HandlerRequest, cartKey string) (*Response, error) {
	if err := req.Store.ClearCart(ctx, cartKey); err != nil {
		return nil, fmt.Errorf("conversation: clear cart: %w", err)
	}
	return &Response{
		Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseCartCleared, nil),
		Intent:  IntentCartClear,
	}, nil
}
