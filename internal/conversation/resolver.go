package conversation

import (
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// StorefrontResolver maps a merchant to a storefront provider. Merchants
// with a connected shop get Shopify; everyone else gets the demo catalog so
// the widget preview works before onboarding finishes.
type StorefrontResolver struct {
	carts *storefront.RedisCartStore
	demo  *storefront.MockProvider
}

func NewStorefrontResolver(carts *storefront.RedisCartStore) *StorefrontResolver {
	return &StorefrontResolver{
		carts: carts,
		demo:  storefront.NewMockProvider(),
	}
}

func (r *StorefrontResolver) For(merchant *merchants.Merchant) storefront.Provider {
	if merchant != nil && merchant.StoreConnected {
		if p := storefront.NewShopifyProvider(merchant.ShopDomain, merchant.ShopAccessToken, r.carts); p != nil {
			return p
		}
	}
	return r.demo
}
