package storefront

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCartStore(t *testing.T) *RedisCartStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCartStore(client)
}

func TestCartStoreMissingCartIsEmpty(t *testing.T) {
	store := newTestCartStore(t)
	cart, err := store.Get(context.Background(), "cart:widget:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(cart.Items) != 0 || cart.Key != "cart:widget:abc" {
		t.Fatalf("expected empty cart with key, got %+v", cart)
	}
}

func TestCartStoreSaveRoundTrip(t *testing.T) {
	store := newTestCartStore(t)
	ctx := context.Background()

	cart := &Cart{
		Key:      "cart:messenger:psid-1",
		Currency: "USD",
		Items: []CartItem{
			{ProductID: "p1", Title: "Shoes", Quantity: 2, Price: 50},
			{ProductID: "p2", Title: "Hat", Quantity: 1, Price: 20},
		},
	}
	if err := store.Save(ctx, cart); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Get(ctx, cart.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded.Items))
	}
	if loaded.Subtotal != 120 {
		t.Fatalf("expected subtotal recomputed on save, got %f", loaded.Subtotal)
	}
}

func TestCartStoreClear(t *testing.T) {
	store := newTestCartStore(t)
	ctx := context.Background()

	cart := &Cart{Key: "cart:widget:s1", Items: []CartItem{{ProductID: "p1", Quantity: 1, Price: 5}}}
	if err := store.Save(ctx, cart); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(ctx, cart.Key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	loaded, err := store.Get(ctx, cart.Key)
	if err != nil {
		t.Fatalf("Get after clear: %v", err)
	}
	if len(loaded.Items) != 0 {
		t.Fatalf("expected cleared cart, got %+v", loaded)
	}
}
