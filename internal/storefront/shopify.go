package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const shopifyAPIVersion = "2024-07"

// ShopifyProvider implements Provider against the Shopify Admin REST API.
// Cart state lives in the shared Redis cart store; checkout hands the cart
// off to Shopify via a cart permalink.
type ShopifyProvider struct {
	shopDomain  string // e.g. "acme.myshopify.com"
	accessToken string
	httpClient  *http.Client
	carts       *RedisCartStore
}

// NewShopifyProvider creates a provider for a merchant's Shopify store.
// Returns nil when the merchant has no store linked; callers treat a nil
// provider as not connected.
func NewShopifyProvider(shopDomain, accessToken string, carts *RedisCartStore) *ShopifyProvider {
	if strings.TrimSpace(shopDomain) == "" || strings.TrimSpace(accessToken) == "" {
		return nil
	}
	return &ShopifyProvider{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		carts:       carts,
	}
}

func (p *ShopifyProvider) apiURL(path string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/%s", p.shopDomain, shopifyAPIVersion, path)
}

func (p *ShopifyProvider) doGet(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("storefront: build shopify request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storefront: shopify request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
		return ErrNotConnected
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront: shopify returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("storefront: decode shopify response: %w", err)
	}
	return nil
}

type shopifyProduct struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Handle   string `json:"handle"`
	Tags     string `json:"tags"`
	Variants []struct {
		ID                int64  `json:"id"`
		Price             string `json:"price"`
		InventoryQuantity int    `json:"inventory_quantity"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// SearchProducts queries the products endpoint and applies entity filters
// locally; Shopify's REST search is title-only, so price and tag filters are
// narrowed here.
func (p *ShopifyProvider) SearchProducts(ctx context.Context, query SearchQuery) ([]Product, error) {
	q := url.Values{}
	q.Set("limit", "50")
	q.Set("status", "active")
	if query.Keywords != "" {
		q.Set("title", query.Keywords)
	}

	var payload struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := p.doGet(ctx, p.apiURL("products.json")+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(payload.Products))
	for _, sp := range payload.Products {
		if len(sp.Variants) == 0 {
			continue
		}
		variant := sp.Variants[0]
		price := parsePrice(variant.Price)

		if query.MaxPrice > 0 && price > query.MaxPrice {
			continue
		}
		if query.MinPrice > 0 && price < query.MinPrice {
			continue
		}
		tags := splitTags(sp.Tags)
		if query.Category != "" && !matchesToken(sp.Title, tags, query.Category) {
			continue
		}
		if query.Brand != "" && !matchesToken(sp.Title, tags, query.Brand) {
			continue
		}
		if query.Color != "" && !matchesToken(sp.Title, tags, query.Color) {
			continue
		}

		product := Product{
			ID:        fmt.Sprintf("%d", sp.ID),
			Title:     sp.Title,
			Price:     price,
			Currency:  "USD",
			URL:       fmt.Sprintf("https://%s/products/%s", p.shopDomain, sp.Handle),
			VariantID: fmt.Sprintf("%d", variant.ID),
			Tags:      tags,
			InStock:   variant.InventoryQuantity > 0,
		}
		if len(sp.Images) > 0 {
			product.ImageURL = sp.Images[0].Src
		}
		products = append(products, product)
	}

	switch query.SortBy {
	case "price_asc":
		sort.Slice(products, func(i, j int) bool { return products[i].Price < products[j].Price })
	case "price_desc":
		sort.Slice(products, func(i, j int) bool { return products[i].Price > products[j].Price })
	}

	if query.Limit > 0 && len(products) > query.Limit {
		products = products[:query.Limit]
	}
	return products, nil
}

// GetCart loads the Redis-backed cart.
func (p *ShopifyProvider) GetCart(ctx context.Context, cartKey string) (*Cart, error) {
	return p.carts.Get(ctx, cartKey)
}

// AddToCart merges the item into the cart, bumping quantity when the product
// is already present.
func (p *ShopifyProvider) AddToCart(ctx context.Context, cartKey string, item CartItem) (*Cart, error) {
	cart, err := p.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, err
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
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		cart.Items = append(cart.Items, item)
	}
	if err := p.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateCartItem sets an item's quantity; zero removes it.
func (p *ShopifyProvider) UpdateCartItem(ctx context.Context, cartKey, productID string, quantity int) (*Cart, error) {
	cart, err := p.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, err
	}
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
	if err := p.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart removes the cart entirely.
func (p *ShopifyProvider) ClearCart(ctx context.Context, cartKey string) error {
	return p.carts.Clear(ctx, cartKey)
}

// CreateCheckoutURL builds a Shopify cart permalink for the current cart.
func (p *ShopifyProvider) CreateCheckoutURL(ctx context.Context, cartKey string) (string, error) {
	cart, err := p.carts.Get(ctx, cartKey)
	if err != nil {
		return "", err
	}
	if len(cart.Items) == 0 {
		return "", fmt.Errorf("storefront: cart is empty")
	}

	parts := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		variant := item.VariantID
		if variant == "" {
			variant = item.ProductID
		}
		parts = append(parts, fmt.Sprintf("%s:%d", variant, item.Quantity))
	}
	return fmt.Sprintf("https://%s/cart/%s", p.shopDomain, strings.Join(parts, ",")), nil
}

// GetOrder looks up an order by its customer-facing number.
func (p *ShopifyProvider) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	name := strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
	if name == "" {
		return nil, fmt.Errorf("storefront: order number is required")
	}

	q := url.Values{}
	q.Set("name", "#"+name)
	q.Set("status", "any")

	var payload struct {
		Orders []struct {
			ID                int64  `json:"id"`
			Name              string `json:"name"`
			FinancialStatus   string `json:"financial_status"`
			FulfillmentStatus string `json:"fulfillment_status"`
			CreatedAt         string `json:"created_at"`
			Fulfillments      []struct {
				TrackingURL string `json:"tracking_url"`
			} `json:"fulfillments"`
		} `json:"orders"`
	}
	if err := p.doGet(ctx, p.apiURL("orders.json")+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Orders) == 0 {
		return nil, nil
	}

	so := payload.Orders[0]
	order := &Order{
		ID:     fmt.Sprintf("%d", so.ID),
		Number: so.Name,
		Status: so.FinancialStatus,
	}
	if so.FulfillmentStatus != "" {
		order.FulfillmentText = so.FulfillmentStatus
	} else {
		order.FulfillmentText = "processing"
	}
	if t, err := time.Parse(time.RFC3339, so.CreatedAt); err == nil {
		order.CreatedAt = t
	}
	if len(so.Fulfillments) > 0 {
		order.TrackingURL = so.Fulfillments[0].TrackingURL
	}
	return order, nil
}

func parsePrice(s string) float64 {
	var v float64
	_, _ = fmt.Sscanf(strings.TrimSpace(s), "%f", &v)
	return v
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func matchesToken(title string, tags []string, token string) bool {
	token = strings.ToLower(token)
	if strings.Contains(strings.ToLower(title), token) {
		return true
	}
	for _, tag := range tags {
		if strings.EqualFold(tag, token) || strings.Contains(strings.ToLower(tag), token) {
			return true
		}
	}
	return false
}
