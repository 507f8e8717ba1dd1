package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"storefront/model"
)

func variant(sku, color, size string, stock int, modifier int64) model.ProductVariant {
	v := model.ProductVariant{SKU: sku, Stock: stock, PriceModifier: decimal.NewFromInt(modifier)}
	if color != "" {
		v.Color = &color
	}
	if size != "" {
		v.Size = &size
	}
	return v
}

func shoeVariants() []model.ProductVariant {
	return []model.ProductVariant{
		variant("RED-40", "Red", "40", 0, 0),
		variant("RED-42", "Red", "42", 4, 0),
		variant("BLUE-42", "Blue", "42", 2, 10),
		variant("BLUE-44", "Blue", "44", 12, 10),
		variant("GREEN-44", "Green", "44", 1, 0),
	}
}

func TestSelectVariant_Defaults(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(100), shoeVariants(), Selection{})

	if diff := cmp.Diff([]string{"Red", "Blue", "Green"}, sel.Colors); diff != "" {
		t.Fatalf("colors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"40", "42", "44"}, sel.Sizes); diff != "" {
		t.Fatalf("sizes (-want +got):\n%s", diff)
	}
	if sel.Color != "Red" || sel.Size != "40" {
		t.Fatalf("expected Red/40 defaults, got %s/%s", sel.Color, sel.Size)
	}
	// Red/40 exists but is sold out
	if sel.Selected == nil || sel.Selected.SKU != "RED-40" || !sel.OutOfStock {
		t.Fatalf("unexpected selected variant %+v out=%v", sel.Selected, sel.OutOfStock)
	}
	if sel.MaxQuantity != 1 {
		t.Fatalf("expected max quantity 1, got %d", sel.MaxQuantity)
	}
	if !sel.SoldOutSizes["40"] || sel.SoldOutSizes["42"] {
		t.Fatalf("unexpected sold out sizes %v", sel.SoldOutSizes)
	}
	if diff := cmp.Diff([]string{"40", "42"}, sel.SizesForColor); diff != "" {
		t.Fatalf("sizes for Red (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Red"}, sel.ColorsForSize); diff != "" {
		t.Fatalf("colors for 40 (-want +got):\n%s", diff)
	}
}

func TestSelectVariant_ColorChangeResetsSize(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(100), shoeVariants(), Selection{Color: "Blue", Size: "40", Changed: ChangedColor})

	if sel.Color != "Blue" || sel.Size != "42" {
		t.Fatalf("expected Blue/42, got %s/%s", sel.Color, sel.Size)
	}
	if sel.Selected == nil || sel.Selected.SKU != "BLUE-42" {
		t.Fatalf("unexpected selected %+v", sel.Selected)
	}
	if !sel.FinalPrice.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("expected 110, got %s", sel.FinalPrice)
	}
	if sel.OutOfStock || sel.MaxQuantity != 2 {
		t.Fatalf("unexpected stock state out=%v max=%d", sel.OutOfStock, sel.MaxQuantity)
	}
}

func TestSelectVariant_SizeChangeResetsColor(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(100), shoeVariants(), Selection{Color: "Red", Size: "44", Changed: ChangedSize})

	if sel.Color != "Blue" || sel.Size != "44" {
		t.Fatalf("expected Blue/44, got %s/%s", sel.Color, sel.Size)
	}
	if sel.MaxQuantity != 10 {
		t.Fatalf("expected max quantity capped at 10, got %d", sel.MaxQuantity)
	}
	if diff := cmp.Diff([]string{"Blue", "Green"}, sel.ColorsForSize); diff != "" {
		t.Fatalf("colors for 44 (-want +got):\n%s", diff)
	}
}

func TestSelectVariant_CompatibleSelectionKept(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(100), shoeVariants(), Selection{Color: "Green", Size: "44", Changed: ChangedColor})
	if sel.Color != "Green" || sel.Size != "44" || sel.Selected.SKU != "GREEN-44" {
		t.Fatalf("unexpected selection %s/%s %+v", sel.Color, sel.Size, sel.Selected)
	}
	if len(sel.Filtered) != 1 {
		t.Fatalf("expected one filtered variant, got %d", len(sel.Filtered))
	}
}

func TestSelectVariant_UnknownValuesIgnored(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(100), shoeVariants(), Selection{Color: "Purple", Size: "99"})
	if sel.Color != "Red" || sel.Size != "40" {
		t.Fatalf("expected defaults, got %s/%s", sel.Color, sel.Size)
	}
}

func TestSelectVariant_PrefersInStockVariant(t *testing.T) {
	variants := []model.ProductVariant{
		variant("A", "Black", "", 0, 0),
		variant("B", "Black", "", 5, 3),
	}
	sel := SelectVariant(decimal.NewFromInt(10), variants, Selection{})

	if len(sel.Sizes) != 0 || sel.Size != "" {
		t.Fatalf("expected no sizes, got %v %q", sel.Sizes, sel.Size)
	}
	if sel.Selected == nil || sel.Selected.SKU != "B" {
		t.Fatalf("expected in-stock variant B, got %+v", sel.Selected)
	}
	if !sel.FinalPrice.Equal(decimal.NewFromInt(13)) || sel.MaxQuantity != 5 {
		t.Fatalf("unexpected price %s max %d", sel.FinalPrice, sel.MaxQuantity)
	}
}

func TestSelectVariant_NoVariants(t *testing.T) {
	sel := SelectVariant(decimal.NewFromInt(10), nil, Selection{Color: "Red"})
	if sel.Selected != nil || !sel.OutOfStock || sel.MaxQuantity != 1 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if !sel.FinalPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected base price, got %s", sel.FinalPrice)
	}
	if sel.Filtered == nil || len(sel.Filtered) != 0 {
		t.Fatalf("expected empty filtered list, got %v", sel.Filtered)
	}
}

func TestClampQuantity(t *testing.T) {
	v := &model.ProductVariant{Stock: 4}
	tests := []struct {
		name string
		q    int
		v    *model.ProductVariant
		want int
	}{
		{"no variant", 3, nil, 1},
		{"below one", 0, v, 1},
		{"within stock", 3, v, 3},
		{"above stock", 9, v, 4},
		{"no stock", 2, &model.ProductVariant{Stock: 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampQuantity(tt.q, tt.v); got != tt.want {
				t.Fatalf("ClampQuantity(%d) = %d, want %d", tt.q, got, tt.want)
			}
		})
	}
}

func TestSelectVariant_Quantity(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want int
	}{
		{"default", Selection{Color: "Red", Size: "42"}, 1},
		{"within stock", Selection{Color: "Red", Size: "42", Quantity: 3}, 3},
		{"above stock", Selection{Color: "Red", Size: "42", Quantity: 9}, 4},
		{"capped per add", Selection{Color: "Blue", Size: "44", Quantity: 12}, 10},
		{"negative", Selection{Color: "Blue", Size: "44", Quantity: -2}, 1},
		{"sold out", Selection{Color: "Red", Size: "40", Quantity: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectVariant(decimal.NewFromInt(100), shoeVariants(), tt.sel)
			if got.Quantity != tt.want {
				t.Fatalf("Quantity = %d, want %d", got.Quantity, tt.want)
			}
		})
	}
}
