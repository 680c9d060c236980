package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestShopify points the provider at an httptest server by rewriting its
// base URL through a custom transport.
func newTestShopify(t *testing.T, handler http.HandlerFunc) *ShopifyProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	p := NewShopifyProvider("acme.myshopify.com", "shpat_test", NewRedisCartStore(client))
	p.httpClient = &http.Client{Transport: rewriteTransport{target: srv.URL}}
	return p
}

type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := rt.target + req.URL.Path
	if req.URL.RawQuery != "" {
		rewritten += "?" + req.URL.RawQuery
	}
	next, err := http.NewRequestWithContext(req.Context(), req.Method, rewritten, req.Body)
	if err != nil {
		return nil, err
	}
	next.Header = req.Header
	return http.DefaultTransport.RoundTrip(next)
}

func TestShopifySearchProducts(t *testing.T) {
	p := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "products.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("unexpected token header %q", got)
		}
		_, _ = w.Write([]byte(`{"products": [
			{"id": 11, "title": "Trail Shoes", "handle": "trail-shoes", "tags": "shoes, running",
			 "variants": [{"id": 111, "price": "89.99", "inventory_quantity": 3}],
			 "images": [{"src": "https://cdn.example/trail.jpg"}]},
			{"id": 12, "title": "Pro Shoes", "handle": "pro-shoes", "tags": "shoes",
			 "variants": [{"id": 121, "price": "149.00", "inventory_quantity": 0}]}
		]}`))
	})

	results, err := p.SearchProducts(context.Background(), SearchQuery{Keywords: "shoes", MaxPrice: 100})
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(results) != 1 || results[0].ID != "11" {
		t.Fatalf("expected only the under-budget product, got %+v", results)
	}
	if !results[0].InStock || results[0].ImageURL == "" {
		t.Errorf("expected stock and image mapped, got %+v", results[0])
	}
}

func TestShopifyUnauthorizedIsNotConnected(t *testing.T) {
	p := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.SearchProducts(context.Background(), SearchQuery{Keywords: "shoes"})
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestShopifyCheckoutPermalink(t *testing.T) {
	p := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()
	key := "cart:widget:sess1"

	if _, err := p.AddToCart(ctx, key, CartItem{ProductID: "11", VariantID: "111", Quantity: 2, Price: 89.99}); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	url, err := p.CreateCheckoutURL(ctx, key)
	if err != nil {
		t.Fatalf("CreateCheckoutURL: %v", err)
	}
	if url != "https://acme.myshopify.com/cart/111:2" {
		t.Fatalf("unexpected permalink %q", url)
	}
}

func TestShopifyGetOrder(t *testing.T) {
	p := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders": [{
			"id": 5001, "name": "#1042", "financial_status": "paid",
			"fulfillment_status": "fulfilled", "created_at": "2026-08-15T12:00:00Z",
			"fulfillments": [{"tracking_url": "https://track.example/1042"}]
		}]}`))
	})

	order, err := p.GetOrder(context.Background(), "1042")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Number != "#1042" || order.TrackingURL == "" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestNewShopifyProviderMissingConfig(t *testing.T) {
	if p := NewShopifyProvider("", "", nil); p != nil {
		t.Fatal("expected nil provider for unlinked store")
	}
}
