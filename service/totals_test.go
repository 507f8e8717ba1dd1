package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"storefront/model"
)

func TestShippingCost(t *testing.T) {
	tests := []struct {
		method model.ShippingMethod
		want   string
	}{
		{model.ShippingStandard, "0"},
		{model.ShippingExpress, "10"},
		{model.ShippingOvernight, "25"},
		{"drone", "0"},
	}
	for _, tt := range tests {
		if got := ShippingCost(tt.method); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("ShippingCost(%q) = %s, want %s", tt.method, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	cart := &model.Cart{
		CartID:     "c1",
		TotalItems: 3,
		TotalPrice: decimal.RequireFromString("59.97"),
		Items: []model.CartItem{
			{SKU: "A", Quantity: 3, Price: decimal.RequireFromString("19.99")},
		},
	}

	s := Summarize(cart, model.ShippingOvernight)
	if !s.Subtotal.Equal(decimal.RequireFromString("59.97")) {
		t.Fatalf("unexpected subtotal %s", s.Subtotal)
	}
	if !s.Tax.IsZero() {
		t.Fatalf("expected zero tax, got %s", s.Tax)
	}
	if !s.Total.Equal(decimal.RequireFromString("84.97")) {
		t.Fatalf("unexpected total %s", s.Total)
	}
	if s.ItemCount != 3 {
		t.Fatalf("unexpected item count %d", s.ItemCount)
	}
	if !cart.Items[0].LineTotal().Equal(decimal.RequireFromString("59.97")) {
		t.Fatalf("unexpected line total %s", cart.Items[0].LineTotal())
	}
}

func TestSummarize_NilCart(t *testing.T) {
	s := Summarize(nil, model.ShippingExpress)
	if !s.Total.Equal(decimal.NewFromInt(10)) || s.ItemCount != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestShippingOptionsAreCopies(t *testing.T) {
	opts := ShippingOptions()
	opts[0].Name = "changed"
	if ShippingOptions()[0].Name != "Standard Shipping" {
		t.Fatalf("ShippingOptions must return a copy")
	}
	if !ShippingOptions()[0].Free() || ShippingOptions()[1].Free() {
		t.Fatalf("unexpected free flags")
	}
}
