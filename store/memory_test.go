package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"storefront/model"
)

func TestMemoryStore_UserRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	now := fixedNow
	m.now = func() time.Time { return now }

	if _, err := m.GetUser(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	name := "Bob B"
	want := &model.User{ID: 3, Username: "bob", FullName: &name, Role: "customer"}
	if err := m.SaveUser(ctx, "s1", want); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	got, err := m.GetUser(ctx, "s1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.GetUser(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

func TestMemoryStore_CartIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	cart := &model.Cart{CartID: "c1", TotalItems: 1, TotalPrice: decimal.NewFromInt(10), Items: []model.CartItem{
		{ItemID: "item_1", SKU: "A", Quantity: 1, Price: decimal.NewFromInt(10)},
	}}
	if err := m.SaveCart(ctx, "s1", cart); err != nil {
		t.Fatalf("SaveCart failed: %v", err)
	}
	cart.Items[0].Quantity = 99

	got, err := m.GetCart(ctx, "s1")
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if got.Items[0].Quantity != 1 {
		t.Fatalf("stored cart changed through caller's pointer: %+v", got.Items[0])
	}

	if err := m.DeleteCart(ctx, "s1"); err != nil {
		t.Fatalf("DeleteCart failed: %v", err)
	}
	if _, err := m.GetCart(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_SearchHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	if _, err := m.GetSearchHistory(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	in := []string{"laptop", "camera"}
	if err := m.SaveSearchHistory(ctx, "s1", in); err != nil {
		t.Fatalf("SaveSearchHistory failed: %v", err)
	}
	in[0] = "mutated"

	got, err := m.GetSearchHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSearchHistory failed: %v", err)
	}
	if diff := cmp.Diff([]string{"laptop", "camera"}, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	if err := m.DeleteSearchHistory(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSearchHistory failed: %v", err)
	}
	if _, err := m.GetSearchHistory(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoresImplementInterface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
	var _ Store = (*PostgresStore)(nil)
	var _ Store = (*RedisStore)(nil)
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	now := fixedNow
	m.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("s%d", i)
		if err := m.SaveCart(ctx, sid, model.EmptyCart()); err != nil {
			t.Fatalf("SaveCart failed: %v", err)
		}
		if err := m.SaveSearchHistory(ctx, sid, []string{"laptop"}); err != nil {
			t.Fatalf("SaveSearchHistory failed: %v", err)
		}
	}
	now = now.Add(30 * time.Second)
	if err := m.SaveUser(ctx, "fresh", &model.User{ID: 1}); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	now = fixedNow.Add(time.Minute)
	if _, err := m.GetSearchHistory(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired history to be hidden, got %v", err)
	}

	n, err := m.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 2000 {
		t.Fatalf("expected 2000 entries purged, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("expected only the fresh entry to remain, got %d", m.Len())
	}
	if _, err := m.GetUser(ctx, "fresh"); err != nil {
		t.Fatalf("fresh entry lost: %v", err)
	}
}
