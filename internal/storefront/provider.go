package storefront

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected indicates the merchant has not linked a storefront yet.
// Handlers translate this into a formatted user-facing message; it is never
// escalated to the orchestrator.
var ErrNotConnected = errors.New("storefront: store not connected")

// Product is a normalized storefront product.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	ImageURL    string   `json:"image_url,omitempty"`
	URL         string   `json:"url,omitempty"`
	VariantID   string   `json:"variant_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	InStock     bool     `json:"in_stock"`
}

// SearchQuery carries the entity-derived product search parameters.
type SearchQuery struct {
	Keywords string
	Category string
	Brand    string
	Color    string
	Size     string
	MaxPrice float64
	MinPrice float64
	SortBy   string // "price_asc", "price_desc", ""
	Limit    int
}

// CartItem is one line in a cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id,omitempty"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Cart is a normalized cart snapshot.
type Cart struct {
	Key      string     `json:"key"`
	Items    []CartItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Currency string     `json:"currency"`
}

// Order is a normalized order lookup result.
type Order struct {
	ID               string     `json:"id"`
	Number           string     `json:"number"`
	Status           string     `json:"status"`
	FulfillmentText  string     `json:"fulfillment_text,omitempty"`
	TrackingURL      string     `json:"tracking_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
}

// Provider is the narrow e-commerce surface the intent handlers consume.
// Implementations may return ErrNotConnected from any method.
type Provider interface {
	SearchProducts(ctx context.Context, query SearchQuery) ([]Product, error)
	GetCart(ctx context.Context, cartKey string) (*Cart, error)
	AddToCart(ctx context.Context, cartKey string, item CartItem) (*Cart, error)
	UpdateCartItem(ctx context.Context, cartKey, productID string, quantity int) (*Cart, error)
	ClearCart(ctx context.Context, cartKey string) error
	CreateCheckoutURL(ctx context.Context, cartKey string) (string, error)
	GetOrder(ctx context.Context, orderNumber string) (*Order, error)
}
