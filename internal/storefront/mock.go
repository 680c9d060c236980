package storefront

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockProvider is a deterministic in-memory storefront used by the preview
// channel and tests. Same catalog every run so merchants see stable demo
// results.
type MockProvider struct {
	mu      sync.Mutex
	catalog []Product
	carts   map[string]*Cart
	orders  map[string]*Order
}

// NewMockProvider seeds the demo catalog.
func NewMockProvider() *MockProvider {
	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	eta := created.Add(5 * 24 * time.Hour)
	return &MockProvider{
		catalog: []Product{
			{ID: "mock-1", Title: "Trailblazer Running Shoes", Price: 89.99, Currency: "USD", Tags: []string{"shoes", "running"}, InStock: true, VariantID: "mock-1-v1"},
			{ID: "mock-2", Title: "Summit Running Shoes Pro", Price: 139.99, Currency: "USD", Tags: []string{"shoes", "running"}, InStock: true, VariantID: "mock-2-v1"},
			{ID: "mock-3", Title: "Everyday Canvas Sneakers", Price: 49.99, Currency: "USD", Tags: []string{"shoes", "casual"}, InStock: true, VariantID: "mock-3-v1"},
			{ID: "mock-4", Title: "Featherlight Rain Jacket", Price: 119.00, Currency: "USD", Tags: []string{"jacket", "outerwear"}, InStock: true, VariantID: "mock-4-v1"},
			{ID: "mock-5", Title: "Merino Wool Beanie", Price: 24.50, Currency: "USD", Tags: []string{"hat", "accessories"}, InStock: true, VariantID: "mock-5-v1"},
			{ID: "mock-6", Title: "Urban Commuter Backpack", Price: 74.00, Currency: "USD", Tags: []string{"bag", "accessories"}, InStock: false, VariantID: "mock-6-v1"},
		},
		carts: make(map[string]*Cart),
		orders: map[string]*Order{
			"1001": {
				ID:               "mock-order-1001",
				Number:           "#1001",
				Status:           "paid",
				FulfillmentText:  "shipped",
				TrackingURL:      "https://track.example/1001",
				CreatedAt:        created,
				EstimatedArrival: &eta,
			},
		},
	}
}

// SearchProducts filters the demo catalog.
func (p *MockProvider) SearchProducts(ctx context.Context, query SearchQuery) ([]Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var results []Product
	for _, product := range p.catalog {
		if query.Keywords != "" && !matchesToken(product.Title, product.Tags, query.Keywords) {
			continue
		}
		if query.Category != "" && !matchesToken(product.Title, product.Tags, query.Category) {
			continue
		}
		if query.MaxPrice > 0 && product.Price > query.MaxPrice {
			continue
		}
		if query.MinPrice > 0 && product.Price < query.MinPrice {
			continue
		}
		results = append(results, product)
	}

	switch query.SortBy {
	case "price_asc":
		sort.Slice(results, func(i, j int) bool { return results[i].Price < results[j].Price })
	case "price_desc":
		sort.Slice(results, func(i, j int) bool { return results[i].Price > results[j].Price })
	}
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

func (p *MockProvider) cartLocked(cartKey string) *Cart {
	cart, ok := p.carts[cartKey]
	if !ok {
		cart = &Cart{Key: cartKey, Currency: "USD"}
		p.carts[cartKey] = cart
	}
	return cart
}

func recalc(cart *Cart) {
	cart.Subtotal = 0
	for _, item := range cart.Items {
		cart.Subtotal += item.Price * float64(item.Quantity)
	}
}

// GetCart returns the session's cart, creating an empty one if needed.
func (p *MockProvider) GetCart(ctx context.Context, cartKey string) (*Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cart := p.cartLocked(cartKey)
	snapshot := *cart
	snapshot.Items = append([]CartItem(nil), cart.Items...)
	return &snapshot, nil
}

// AddToCart merges the item into the session's cart.
func (p *MockProvider) AddToCart(ctx context.Context, cartKey string, item CartItem) (*Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cart := p.cartLocked(cartKey)
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, item)
	}
	recalc(cart)
	snapshot := *cart
	snapshot.Items = append([]CartItem(nil), cart.Items...)
	return &snapshot, nil
}

// UpdateCartItem sets an item's quantity; zero removes it.
func (p *MockProvider) UpdateCartItem(ctx context.Context, cartKey, productID string, quantity int) (*Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cart := p.cartLocked(cartKey)
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID == productID {
			if quantity <= 0 {
				continue
			}
			item.Quantity = quantity
		}
		kept = append(kept, item)
	}
	cart.Items = kept
	recalc(cart)
	snapshot := *cart
	snapshot.Items = append([]CartItem(nil), cart.Items...)
	return &snapshot, nil
}

// ClearCart empties the session's cart.
func (p *MockProvider) ClearCart(ctx context.Context, cartKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.carts, cartKey)
	return nil
}

// CreateCheckoutURL returns a stable demo checkout link.
func (p *MockProvider) CreateCheckoutURL(ctx context.Context, cartKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cart, ok := p.carts[cartKey]
	if !ok || len(cart.Items) == 0 {
		return "", fmt.Errorf("storefront: cart is empty")
	}
	return "https://demo.shopchat.ai/checkout/" + cartKey, nil
}

// GetOrder looks up a demo order by number.
func (p *MockProvider) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
	order, ok := p.orders[name]
	if !ok {
		return nil, nil
	}
	snapshot := *order
	return &snapshot, nil
}
