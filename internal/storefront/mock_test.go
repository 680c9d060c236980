package storefront

import (
	"context"
	"testing"
)

func TestMockSearchFiltersByPrice(t *testing.T) {
	p := NewMockProvider()
	results, err := p.SearchProducts(context.Background(), SearchQuery{Keywords: "shoes", MaxPrice: 100})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results under $100")
	}
	for _, product := range results {
		if product.Price > 100 {
			t.Errorf("product %s over budget: %f", product.Title, product.Price)
		}
	}
}

func TestMockSearchSortCheapest(t *testing.T) {
	p := NewMockProvider()
	results, err := p.SearchProducts(context.Background(), SearchQuery{Keywords: "shoes", SortBy: "price_asc", Limit: 1})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(results) != 1 || results[0].ID != "mock-3" {
		t.Fatalf("expected cheapest shoes first, got %+v", results)
	}
}

func TestMockCartLifecycle(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()
	key := "cart:preview:m1:0"

	cart, err := p.AddToCart(ctx, key, CartItem{ProductID: "mock-1", Title: "Trailblazer Running Shoes", Price: 89.99})
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 1 {
		t.Fatalf("unexpected cart %+v", cart)
	}

	// Adding the same product merges quantity
	cart, _ = p.AddToCart(ctx, key, CartItem{ProductID: "mock-1", Quantity: 2})
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", cart.Items[0].Quantity)
	}

	url, err := p.CreateCheckoutURL(ctx, key)
	if err != nil || url == "" {
		t.Fatalf("CreateCheckoutURL: %q err=%v", url, err)
	}

	if err := p.ClearCart(ctx, key); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	cart, _ = p.GetCart(ctx, key)
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", cart)
	}
}

func TestMockCheckoutEmptyCart(t *testing.T) {
	p := NewMockProvider()
	if _, err := p.CreateCheckoutURL(context.Background(), "cart:preview:m1:0"); err == nil {
		t.Fatal("expected error for empty cart checkout")
	}
}

func TestMockGetOrder(t *testing.T) {
	p := NewMockProvider()
	order, err := p.GetOrder(context.Background(), "#1001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order == nil || order.Status != "paid" {
		t.Fatalf("unexpected order %+v", order)
	}

	missing, err := p.GetOrder(context.Background(), "#9999")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown order, got %+v err=%v", missing, err)
	}
}
