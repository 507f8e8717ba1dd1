package model

import "github.com/shopspring/decimal"

const placeholderImage = "/static/placeholder-product.svg"

// ProductVariant is a purchasable SKU of a product. Color and size are
// optional; the backend sends null when a product has no such axis.
type ProductVariant struct {
	SKU           string          `json:"sku"`
	Color         *string         `json:"color"`
	Size          *string         `json:"size"`
	Stock         int             `json:"stock"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

func (v ProductVariant) ColorValue() string {
	if v.Color == nil {
		return ""
	}
	return *v.Color
}

func (v ProductVariant) SizeValue() string {
	if v.Size == nil {
		return ""
	}
	return *v.Size
}

type ProductListItem struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Images      []string        `json:"images"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"review_count"`
}

func (p ProductListItem) Thumbnail() string {
	return firstImage(p.Images)
}

type ProductDetail struct {
	ID          string           `json:"id"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Currency    string           `json:"currency"`
	Description *string          `json:"description"`
	Images      []string         `json:"images"`
	Variants    []ProductVariant `json:"variants"`
	Rating      float64          `json:"rating"`
	ReviewCount int              `json:"review_count"`
}

func (p ProductDetail) Thumbnail() string {
	return firstImage(p.Images)
}

// Variant returns the variant with the given sku, or nil.
func (p ProductDetail) Variant(sku string) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].SKU == sku {
			return &p.Variants[i]
		}
	}
	return nil
}

func firstImage(images []string) string {
	if len(images) == 0 || images[0] == "" {
		return placeholderImage
	}
	return images[0]
}
