package service

import (
	"github.com/shopspring/decimal"

	"storefront/model"
)

const maxQuantityPerAdd = 10

// Which attribute the visitor picked last. It decides which side wins when
// the requested color and size are not sold together.
const (
	ChangedColor = "color"
	ChangedSize  = "size"
)

// Selection is the visitor's request on a product page.
type Selection struct {
	Color    string
	Size     string
	Changed  string
	Quantity int
}

// VariantSelection is everything the product page needs to render the
// variant pickers and the add-to-cart form.
type VariantSelection struct {
	Colors        []string
	Sizes         []string
	ColorsForSize []string
	SizesForColor []string
	// SoldOutSizes marks sizes whose variant in the selected color has no stock.
	SoldOutSizes map[string]bool

	Color string
	Size  string

	Filtered    []model.ProductVariant
	Selected    *model.ProductVariant
	FinalPrice  decimal.Decimal
	OutOfStock  bool
	MaxQuantity int
	// Quantity is the requested amount, clamped to what can be added.
	Quantity int
}

// SelectVariant resolves a color/size request against a product's variants.
// Unknown requested values are ignored, empty ones default to the first
// value offered.
func SelectVariant(base decimal.Decimal, variants []model.ProductVariant, sel Selection) VariantSelection {
	out := VariantSelection{
		Colors:       uniqueValues(variants, model.ProductVariant.ColorValue, nil),
		Sizes:        uniqueValues(variants, model.ProductVariant.SizeValue, nil),
		SoldOutSizes: map[string]bool{},
	}

	color := pick(out.Colors, sel.Color)
	size := pick(out.Sizes, sel.Size)

	switch sel.Changed {
	case ChangedSize:
		if size != "" && color != "" {
			offered := colorsFor(variants, size)
			if !contains(offered, color) {
				color = first(offered)
			}
		}
	default:
		if color != "" && size != "" {
			offered := sizesFor(variants, color)
			if !contains(offered, size) {
				size = first(offered)
			}
		}
	}
	out.Color, out.Size = color, size

	out.SizesForColor = out.Sizes
	if color != "" {
		out.SizesForColor = sizesFor(variants, color)
	}
	out.ColorsForSize = out.Colors
	if size != "" {
		out.ColorsForSize = colorsFor(variants, size)
	}
	for _, v := range variants {
		if v.SizeValue() != "" && v.ColorValue() == color && v.Stock == 0 {
			out.SoldOutSizes[v.SizeValue()] = true
		}
	}

	out.Filtered = []model.ProductVariant{}
	for _, v := range variants {
		if color != "" && v.ColorValue() != color {
			continue
		}
		if size != "" && v.SizeValue() != size {
			continue
		}
		out.Filtered = append(out.Filtered, v)
	}

	for i := range out.Filtered {
		if out.Filtered[i].Stock > 0 {
			out.Selected = &out.Filtered[i]
			break
		}
	}
	if out.Selected == nil && len(out.Filtered) > 0 {
		out.Selected = &out.Filtered[0]
	}

	out.FinalPrice = base
	out.MaxQuantity = 1
	out.OutOfStock = true
	if out.Selected != nil {
		out.FinalPrice = base.Add(out.Selected.PriceModifier)
		out.OutOfStock = out.Selected.Stock == 0
		out.MaxQuantity = min(out.Selected.Stock, maxQuantityPerAdd)
		if out.MaxQuantity < 1 {
			out.MaxQuantity = 1
		}
	}
	out.Quantity = min(ClampQuantity(sel.Quantity, out.Selected), out.MaxQuantity)
	return out
}

// ClampQuantity keeps q within [1, stock of v].
func ClampQuantity(q int, v *model.ProductVariant) int {
	if v == nil || q < 1 {
		return 1
	}
	if q > v.Stock {
		return max(v.Stock, 1)
	}
	return q
}

func sizesFor(variants []model.ProductVariant, color string) []string {
	return uniqueValues(variants, model.ProductVariant.SizeValue, func(v model.ProductVariant) bool {
		return v.ColorValue() == color
	})
}

func colorsFor(variants []model.ProductVariant, size string) []string {
	return uniqueValues(variants, model.ProductVariant.ColorValue, func(v model.ProductVariant) bool {
		return v.SizeValue() == size
	})
}

// uniqueValues collects the non-empty values of attr in first-seen order,
// optionally restricted to variants accepted by keep.
func uniqueValues(variants []model.ProductVariant, attr func(model.ProductVariant) string, keep func(model.ProductVariant) bool) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range variants {
		if keep != nil && !keep(v) {
			continue
		}
		val := attr(v)
		if val == "" || seen[val] {
			continue
		}
		seen[val] = true
		out = append(out, val)
	}
	return out
}

func pick(options []string, requested string) string {
	if requested != "" && contains(options, requested) {
		return requested
	}
	return first(options)
}

func first(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[0]
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
