package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// SearchHandler answers product_search by querying the merchant's storefront
// with the extracted entities.
type SearchHandler struct {
	formatter *Formatter
	limit     int
}

func NewSearchHandler(formatter *Formatter, limit int) *SearchHandler {
	if limit <= 0 {
		limit = 5
	}
	return &SearchHandler{formatter: formatter, limit: limit}
}

func (h *SearchHandler) Handle(ctx context.Context, req *HandlerRequest) (*Response, error) {
	e := req.Result.Entities
	query := storefront.SearchQuery{
		Keywords: e.Keywords,
		Category: e.Category,
		Brand:    e.Brand,
		Color:    e.Color,
		Size:     e.Size,
		MaxPrice: e.Budget,
		SortBy:   e.SortBy,
		Limit:    h.limit,
	}
	if query.Keywords == "" && query.Category == "" {
		query.Keywords = req.Message
	}

	products, err := req.Store.SearchProducts(ctx, query)
	if errors.Is(err, storefront.ErrNotConnected) {
		return storeOffline(h.formatter, req), nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: product search: %w", err)
	}

	label := query.Keywords
	if label == "" {
		label = query.Category
	}
	if label == "" {
		label = "your search"
	}

	if len(products) == 0 {
		return &Response{
			Message: h.formatter.Format(req.merchantID(), req.personality(), ResponseSearchEmpty,
				map[string]string{"query": label}),
			Intent:     IntentProductSearch,
			Confidence: req.Result.Confidence,
		}, nil
	}

	msg := h.formatter.Format(req.merchantID(), req.personality(), ResponseSearchResults,
		map[string]string{
			"count": fmt.Sprintf("%d", len(products)),
			"query": label,
		})

	var sb strings.Builder
	sb.WriteString(msg)
	for i, p := range products {
		fmt.Fprintf(&sb, "\n%d. %s — %s", i+1, p.Title, formatMoney(p.Price, p.Currency))
	}

	return &Response{
		Message:    sb.String(),
		Intent:     IntentProductSearch,
		Confidence: req.Result.Confidence,
		Products:   products,
	}, nil
}
